package telnetopt

import "testing"

type recordingSender struct {
	written []byte
}

func (r *recordingSender) Write(p []byte) (int, error) {
	r.written = append(r.written, p...)
	return len(p), nil
}

// Invariant (spec §8): for all byte sequences, the output is the input
// with every FF <CMD> <OPT> triple removed; a lone trailing FF or
// FF CMD is passed through unchanged.
func TestStripAndNegotiate_RemovesCompleteTriplesOnly(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"no IAC", []byte("hello"), []byte("hello")},
		{"one triple", []byte{'a', IAC, DO, OptSGA, 'b'}, []byte{'a', 'b'}},
		{
			"two triples interleaved with data",
			[]byte{'x', IAC, WILL, OptECHO, 'y', IAC, DONT, OptSGA, 'z'},
			[]byte{'x', 'y', 'z'},
		},
		{"lone trailing IAC passed through", []byte{'a', IAC}, []byte{'a', IAC}},
		{"trailing IAC+CMD passed through", []byte{'a', IAC, DO}, []byte{'a', IAC, DO}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := &recordingSender{}
			got := StripAndNegotiate(c.in, r)
			if string(got) != string(c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestStripAndNegotiate_RespondsWillSGAToDoSGA(t *testing.T) {
	r := &recordingSender{}
	StripAndNegotiate([]byte{IAC, DO, OptSGA}, r)
	want := []byte{IAC, WILL, OptSGA}
	if string(r.written) != string(want) {
		t.Fatalf("reply = %v, want %v", r.written, want)
	}
}

func TestOfferSGAAndEcho(t *testing.T) {
	r := &recordingSender{}
	if err := OfferSGAAndEcho(r); err != nil {
		t.Fatal(err)
	}
	want := []byte{IAC, WILL, OptSGA, IAC, WILL, OptECHO}
	if string(r.written) != string(want) {
		t.Fatalf("offer = %v, want %v", r.written, want)
	}
}
