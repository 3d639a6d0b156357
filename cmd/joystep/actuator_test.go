package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/bendahl/uinput"
)

// fakeKeyboard records key transitions.
type fakeKeyboard struct {
	calls  []string
	down   map[int]bool
	failOn int
	closed bool
}

func newFakeKeyboard() *fakeKeyboard {
	return &fakeKeyboard{down: make(map[int]bool), failOn: -1}
}

func (k *fakeKeyboard) KeyDown(key int) error {
	if key == k.failOn {
		return errors.New("write /dev/uinput: broken pipe")
	}
	k.calls = append(k.calls, "down")
	k.down[key] = true
	return nil
}

func (k *fakeKeyboard) KeyUp(key int) error {
	if key == k.failOn {
		return errors.New("write /dev/uinput: broken pipe")
	}
	k.calls = append(k.calls, "up")
	delete(k.down, key)
	return nil
}

func (k *fakeKeyboard) Close() error {
	k.closed = true
	return nil
}

func TestKeyCodes_Layouts(t *testing.T) {
	tests := []struct {
		dir    Direction
		layout KeyLayout
		want   []int
	}{
		{DirUp, LayoutWASD, []int{uinput.KeyW}},
		{DirLeft, LayoutWASD, []int{uinput.KeyA}},
		{DirDownRight, LayoutWASD, []int{uinput.KeyS, uinput.KeyD}},
		{DirUpLeft, LayoutArrows, []int{uinput.KeyUp, uinput.KeyLeft}},
		{DirRight, LayoutArrows, []int{uinput.KeyRight}},
		{DirNone, LayoutWASD, nil},
	}
	for _, tt := range tests {
		got := keyCodes(tt.dir, tt.layout)
		if len(got) != len(tt.want) {
			t.Fatalf("keyCodes(%s, %s) = %v, want %v", tt.dir, tt.layout, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("keyCodes(%s, %s) = %v, want %v", tt.dir, tt.layout, got, tt.want)
			}
		}
	}
}

func TestKeyboardActuator_PressAndReleaseAreIdempotent(t *testing.T) {
	kb := newFakeKeyboard()
	a := newKeyboardActuator(kb, LayoutWASD)

	for i := 0; i < 3; i++ {
		if err := a.Press(DirUp); err != nil {
			t.Fatalf("Press: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := a.Release(DirUp); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}

	if len(kb.calls) != 2 || kb.calls[0] != "down" || kb.calls[1] != "up" {
		t.Fatalf("keyboard calls = %v, want [down up]", kb.calls)
	}
}

func TestKeyboardActuator_DiagonalSharesKeyWithCardinal(t *testing.T) {
	kb := newFakeKeyboard()
	a := newKeyboardActuator(kb, LayoutWASD)

	if err := a.Press(DirUp); err != nil {
		t.Fatalf("Press up: %v", err)
	}
	// W is already down; only A goes down.
	if err := a.Press(DirUpLeft); err != nil {
		t.Fatalf("Press up-left: %v", err)
	}
	if len(kb.down) != 2 || !kb.down[uinput.KeyW] || !kb.down[uinput.KeyA] {
		t.Fatalf("keys down = %v, want W and A", kb.down)
	}
	if len(kb.calls) != 2 {
		t.Fatalf("keyboard calls = %v, want two downs", kb.calls)
	}
}

func TestKeyboardActuator_CloseReleasesEverything(t *testing.T) {
	kb := newFakeKeyboard()
	a := newKeyboardActuator(kb, LayoutArrows)

	if err := a.Press(DirDownLeft); err != nil {
		t.Fatalf("Press: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(kb.down) != 0 {
		t.Fatalf("keys still down after Close: %v", kb.down)
	}
	if !kb.closed {
		t.Fatalf("keyboard not closed")
	}
}

func TestKeyboardActuator_FailureWrapsActuatorError(t *testing.T) {
	kb := newFakeKeyboard()
	kb.failOn = uinput.KeyD
	a := newKeyboardActuator(kb, LayoutWASD)

	err := a.Press(DirRight)
	if !errors.Is(err, ErrActuatorFailure) {
		t.Fatalf("Press error = %v, want ErrActuatorFailure", err)
	}
	// A failed press is not remembered, so the release is a no-op.
	if err := a.Release(DirRight); err != nil {
		t.Fatalf("Release after failed press: %v", err)
	}
}

func TestParseKeyLayout(t *testing.T) {
	if l, err := ParseKeyLayout(" Arrows "); err != nil || l != LayoutArrows {
		t.Fatalf("ParseKeyLayout(Arrows) = %q, %v", l, err)
	}
	if _, err := ParseKeyLayout("dvorak"); err == nil {
		t.Fatalf("ParseKeyLayout(dvorak) succeeded")
	}
}

func TestParseActuationMode_TileIsPulse(t *testing.T) {
	for in, want := range map[string]ActuationMode{"hold": ActuationHold, "pulse": ActuationPulse, "TILE": ActuationPulse} {
		got, err := ParseActuationMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseActuationMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseActuationMode("toggle"); err == nil {
		t.Fatalf("ParseActuationMode(toggle) succeeded")
	}
}

func TestLogActuator_NeverFails(t *testing.T) {
	a := NewLogActuator(LayoutWASD, slog.Default())
	if err := a.Press(DirUpRight); err != nil {
		t.Fatalf("Press: %v", err)
	}
	if err := a.Release(DirUpRight); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
