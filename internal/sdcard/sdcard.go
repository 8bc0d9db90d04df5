// Package sdcard is the thin storage wrapper the CLI's "ls" command
// and the RAM-disk image loader use. The companion board reads its
// image file off a real SD card; this hosted build reads it out of an
// ordinary directory, so Mounted simply reports whether that
// directory exists instead of probing an SPI-attached card.
package sdcard

import (
	"os"
	"path/filepath"
	"sort"
)

// Dir is the directory standing in for the SD card's mount point.
type Dir struct {
	Root string
}

// New returns a wrapper rooted at root.
func New(root string) *Dir {
	return &Dir{Root: root}
}

// Mounted reports whether the storage directory is present.
func (d *Dir) Mounted() bool {
	info, err := os.Stat(d.Root)
	return err == nil && info.IsDir()
}

// Path joins name onto the storage root.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.Root, name)
}

// Exists reports whether name is present in the storage directory.
func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}

// FileSize returns name's size in bytes.
func (d *Dir) FileSize(name string) (int64, error) {
	info, err := os.Stat(d.Path(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FileInfo is one directory entry as reported by List.
type FileInfo struct {
	Name string
	Size int64
}

// List returns the storage directory's contents sorted by name, the
// way the CLI's "ls" command presents them.
func (d *Dir) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
