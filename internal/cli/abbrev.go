package cli

// command is one dispatchable command: its full name and the handler
// it abbreviates to.
type command struct {
	name    string
	handler func(args []string)
}

// abbreviate builds the prefix-abbreviation map for a set of commands,
// exactly mirroring abbreviate_methods: every prefix of length >= 2 of
// each command's name maps to its handler, except that a prefix shared
// by two or more commands is removed from the map entirely rather than
// resolving to either one. The full, unabbreviated name is included
// since it is itself a prefix of itself.
func abbreviate(commands []command) map[string]func(args []string) {
	methods := map[string]func(args []string){}
	var duplicates []string
	for _, c := range commands {
		for i := 2; i <= len(c.name); i++ {
			prefix := c.name[:i]
			if _, exists := methods[prefix]; exists {
				duplicates = append(duplicates, prefix)
			} else {
				methods[prefix] = c.handler
			}
		}
	}
	for _, dup := range duplicates {
		delete(methods, dup)
	}
	return methods
}
