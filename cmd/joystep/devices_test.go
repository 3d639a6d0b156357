package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanKeyboards(t *testing.T) {
	dir := t.TempDir()
	links := map[string]string{
		"usb-Logitech_K120-event-kbd":    "../event5",
		"usb-Keychron_K2-event-kbd":      "../event3",
		"usb-Logitech_Mouse-event-mouse": "../event7",
		"usb-Keychron_K2-if01-kbd":       "../event4", // no event node in name
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(dir, name)); err != nil {
			t.Fatalf("symlink: %v", err)
		}
	}

	got, err := scanKeyboards(dir)
	if err != nil {
		t.Fatalf("scanKeyboards: %v", err)
	}
	parent := filepath.Dir(dir)
	want := []KeyboardDevice{
		{Name: "usb-Keychron_K2-event-kbd", Path: filepath.Join(parent, "event3")},
		{Name: "usb-Logitech_K120-event-kbd", Path: filepath.Join(parent, "event5")},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("device %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestScanKeyboards_MissingDir(t *testing.T) {
	got, err := scanKeyboards(filepath.Join(t.TempDir(), "by-id"))
	if err != nil || got != nil {
		t.Fatalf("scanKeyboards(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestDiffKeyboards(t *testing.T) {
	a := KeyboardDevice{Name: "a", Path: "/dev/input/event1"}
	b := KeyboardDevice{Name: "b", Path: "/dev/input/event2"}
	c := KeyboardDevice{Name: "c", Path: "/dev/input/event3"}

	known := map[string]KeyboardDevice{a.Path: a, b.Path: b}
	added, removed := diffKeyboards(known, []KeyboardDevice{b, c})

	if len(added) != 1 || added[0] != c {
		t.Fatalf("added = %+v, want [c]", added)
	}
	if len(removed) != 1 || removed[0] != a {
		t.Fatalf("removed = %+v, want [a]", removed)
	}

	added, removed = diffKeyboards(known, []KeyboardDevice{a, b})
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("unchanged set reported added=%v removed=%v", added, removed)
	}
}
