package modemsock

import "testing"

func TestSplitHostPort(t *testing.T) {
	ip, port, err := splitHostPort("192.168.1.42:8080")
	if err != nil {
		t.Fatal(err)
	}
	want := [4]byte{192, 168, 1, 42}
	if ip != want {
		t.Fatalf("ip = %v, want %v", ip, want)
	}
	if port != 8080 {
		t.Fatalf("port = %d, want 8080", port)
	}
}

func TestSplitHostPort_RejectsHostnames(t *testing.T) {
	if _, _, err := splitHostPort("example.com:23"); err == nil {
		t.Fatal("expected error for a non-dotted address")
	}
}
