package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bendahl/uinput"
)

// KeyActuator presses and releases the keys for a direction.
// Both operations are idempotent: pressing a pressed key or releasing a
// released key does nothing.
type KeyActuator interface {
	Press(dir Direction) error
	Release(dir Direction) error
	Close() error
}

// KeyLayout selects which physical keys a direction maps to.
type KeyLayout string

const (
	LayoutWASD   KeyLayout = "wasd"
	LayoutArrows KeyLayout = "arrows"
)

// ParseKeyLayout accepts "wasd" or "arrows".
func ParseKeyLayout(s string) (KeyLayout, error) {
	switch KeyLayout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutWASD:
		return LayoutWASD, nil
	case LayoutArrows:
		return LayoutArrows, nil
	default:
		return "", fmt.Errorf("invalid key layout: %q (must be wasd or arrows)", s)
	}
}

// keyCodes returns the key codes for dir. Diagonals map to two keys.
func keyCodes(dir Direction, layout KeyLayout) []int {
	vertical, horizontal := dir.components()
	var codes []int
	for _, d := range []Direction{vertical, horizontal} {
		if d == DirNone {
			continue
		}
		codes = append(codes, singleKeyCode(d, layout))
	}
	return codes
}

func singleKeyCode(d Direction, layout KeyLayout) int {
	if layout == LayoutArrows {
		switch d {
		case DirUp:
			return uinput.KeyUp
		case DirDown:
			return uinput.KeyDown
		case DirLeft:
			return uinput.KeyLeft
		default:
			return uinput.KeyRight
		}
	}
	switch d {
	case DirUp:
		return uinput.KeyW
	case DirDown:
		return uinput.KeyS
	case DirLeft:
		return uinput.KeyA
	default:
		return uinput.KeyD
	}
}

// keyboard is the subset of uinput.Keyboard the actuator drives.
type keyboard interface {
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

// keyboardActuator maps directions onto a keyboard and remembers which
// codes are down so repeated presses and releases are no-ops.
type keyboardActuator struct {
	kb     keyboard
	layout KeyLayout

	mu   sync.Mutex
	down map[int]bool
}

func newKeyboardActuator(kb keyboard, layout KeyLayout) *keyboardActuator {
	return &keyboardActuator{
		kb:     kb,
		layout: layout,
		down:   make(map[int]bool),
	}
}

// NewUinputActuator creates a virtual keyboard at path (usually /dev/uinput).
func NewUinputActuator(path, name string, layout KeyLayout) (KeyActuator, error) {
	kb, err := uinput.CreateKeyboard(path, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard at %s: %w", path, err)
	}
	return newKeyboardActuator(kb, layout), nil
}

func (a *keyboardActuator) Press(dir Direction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, code := range keyCodes(dir, a.layout) {
		if a.down[code] {
			continue
		}
		if err := a.kb.KeyDown(code); err != nil {
			return fmt.Errorf("%w: key down %d (%s): %w", ErrActuatorFailure, code, dir, err)
		}
		a.down[code] = true
	}
	return nil
}

func (a *keyboardActuator) Release(dir Direction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, code := range keyCodes(dir, a.layout) {
		if !a.down[code] {
			continue
		}
		if err := a.kb.KeyUp(code); err != nil {
			errs = append(errs, fmt.Errorf("%w: key up %d (%s): %w", ErrActuatorFailure, code, dir, err))
			continue
		}
		delete(a.down, code)
	}
	return errors.Join(errs...)
}

// Close releases every key still down, then closes the keyboard.
func (a *keyboardActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for code := range a.down {
		if err := a.kb.KeyUp(code); err != nil {
			errs = append(errs, fmt.Errorf("key up %d: %w", code, err))
		}
		delete(a.down, code)
	}
	if err := a.kb.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// logKeyboard is the dry-run keyboard: it only logs.
type logKeyboard struct {
	logger *slog.Logger
}

func (k logKeyboard) KeyDown(key int) error {
	k.logger.Info("dry-run key down", "code", key)
	return nil
}

func (k logKeyboard) KeyUp(key int) error {
	k.logger.Info("dry-run key up", "code", key)
	return nil
}

func (k logKeyboard) Close() error { return nil }

// NewLogActuator returns an actuator that logs instead of pressing keys.
func NewLogActuator(layout KeyLayout, logger *slog.Logger) KeyActuator {
	return newKeyboardActuator(logKeyboard{logger: logger}, layout)
}
