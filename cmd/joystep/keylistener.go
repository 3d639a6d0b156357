package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// movementKeys maps key codes to the direction component they steer.
var movementKeys = map[uint16]Direction{
	KEY_W:     DirUp,
	KEY_S:     DirDown,
	KEY_A:     DirLeft,
	KEY_D:     DirRight,
	KEY_UP:    DirUp,
	KEY_DOWN:  DirDown,
	KEY_LEFT:  DirLeft,
	KEY_RIGHT: DirRight,
}

func isVertical(d Direction) bool { return d == DirUp || d == DirDown }

// directionTracker turns movement key presses into directions.
//
// A press yields the pressed component combined with the other axis's
// held key, so W then A gives up-left. Releases never yield a direction:
// the last pressed direction stays in effect.
type directionTracker struct {
	held map[uint16]bool
}

func newDirectionTracker() *directionTracker {
	return &directionTracker{held: make(map[uint16]bool)}
}

// update applies one key event. ok is false when the event does not change
// the requested direction.
func (t *directionTracker) update(code uint16, value int32) (dir Direction, ok bool) {
	comp, isMovement := movementKeys[code]
	if !isMovement {
		return DirNone, false
	}

	switch value {
	case evValueRelease:
		delete(t.held, code)
		return DirNone, false
	case evValuePress:
		t.held[code] = true
	default:
		// Autorepeat carries no new information.
		return DirNone, false
	}

	other := t.heldOnAxis(!isVertical(comp))
	if isVertical(comp) {
		return combineDirections(comp, other), true
	}
	return combineDirections(other, comp), true
}

// heldOnAxis returns the held component on one axis, or DirNone when no key
// or two opposing keys are held there.
func (t *directionTracker) heldOnAxis(vertical bool) Direction {
	found := DirNone
	for code := range t.held {
		comp := movementKeys[code]
		if isVertical(comp) != vertical {
			continue
		}
		if found != DirNone && found != comp {
			return DirNone
		}
		found = comp
	}
	return found
}

// KeyListener reads physical keyboards and writes the direction register.
type KeyListener struct {
	register *DirectionRegister
	logger   *slog.Logger
	// skipName is our own virtual keyboard; reading it back would feed
	// the daemon's presses into the register.
	skipName string

	tracker *directionTracker
}

func NewKeyListener(register *DirectionRegister, virtualName string, logger *slog.Logger) *KeyListener {
	return &KeyListener{
		register: register,
		logger:   logger,
		skipName: virtualName,
		tracker:  newDirectionTracker(),
	}
}

// Run reads keyboards until ctx is canceled.
//
// With explicit devices they are read through a single epoll reader.
// Otherwise keyboards are discovered under /dev/input/by-id and, when watch
// is set, followed across hotplug.
func (l *KeyListener) Run(ctx context.Context, cfg KeyboardConfig) error {
	if len(cfg.Devices) > 0 {
		return l.runDevices(ctx, cfg.Devices)
	}
	return l.runDiscovery(ctx, cfg.Watch)
}

func (l *KeyListener) handle(ev deviceEvent) {
	if ev.Type != EV_KEY {
		return
	}
	dir, ok := l.tracker.update(ev.Code, ev.Value)
	if !ok || dir == DirNone {
		return
	}
	if prev := l.register.Load(); prev != dir {
		l.register.Store(dir)
		l.logger.Info("direction changed", "direction", dir, "previous", prev, "device", ev.Device)
	}
}

// openKeyboard opens path unless it is our own virtual keyboard.
func (l *KeyListener) openKeyboard(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	name, err := deviceName(f)
	if err != nil {
		l.logger.Debug("cannot read keyboard name", "path", path, "error", err)
	}
	if name != "" && name == l.skipName {
		f.Close()
		return nil, fmt.Errorf("%s is the virtual keyboard", path)
	}
	l.logger.Info("reading keyboard", "path", path, "name", name)
	return f, nil
}

func (l *KeyListener) runDevices(ctx context.Context, paths []string) error {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, p := range paths {
		f, err := l.openKeyboard(ExpandPath(p))
		if err != nil {
			l.logger.Warn("skipping keyboard", "path", p, "error", err, "tip", "run as root or add user to 'input' group")
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return errors.New("no keyboard device could be opened")
	}

	done := make(chan struct{})
	defer close(done)

	events := make(chan deviceEvent, 64)
	readErr := make(chan error, 1)
	go readInputEventsEpoll(files, events, readErr, done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("keyboard reader stopped: %w", err)
		case ev := <-events:
			l.handle(ev)
		}
	}
}

type readerStopped struct {
	path string
	file *os.File
	err  error
}

func (l *KeyListener) runDiscovery(ctx context.Context, watch bool) error {
	kbEvents := make(chan KeyboardEvent, 8)
	monErr := make(chan error, 1)
	go func() {
		monErr <- NewKeyboardMonitor(l.logger).Run(ctx, watch, kbEvents)
	}()

	events := make(chan deviceEvent, 64)
	stopped := make(chan readerStopped, 4)
	open := make(map[string]*os.File)
	defer func() {
		for _, f := range open {
			f.Close()
		}
	}()

	startReader := func(path string, f *os.File) {
		errc := make(chan error, 1)
		go func() {
			readInputEvents(f, events, errc, ctx.Done())
			select {
			case err := <-errc:
				select {
				case stopped <- readerStopped{path: path, file: f, err: err}:
				case <-ctx.Done():
				}
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-monErr:
			monErr = nil
			if err != nil {
				return fmt.Errorf("keyboard discovery: %w", err)
			}
			if len(open) == 0 {
				l.logger.Warn("no keyboard found; direction stays fixed unless set over IPC")
			}

		case kev := <-kbEvents:
			path := kev.Device.Path
			if !kev.Added {
				if f, ok := open[path]; ok {
					f.Close()
					delete(open, path)
				}
				continue
			}
			if _, ok := open[path]; ok {
				continue
			}
			f, err := l.openKeyboard(path)
			if err != nil {
				l.logger.Warn("skipping keyboard", "path", path, "error", err)
				continue
			}
			open[path] = f
			startReader(path, f)

		case s := <-stopped:
			if cur, ok := open[s.path]; ok && cur == s.file {
				cur.Close()
				delete(open, s.path)
			}
			if !errors.Is(s.err, os.ErrClosed) {
				l.logger.Info("keyboard reader stopped", "path", s.path, "error", s.err)
			}

		case ev := <-events:
			l.handle(ev)
		}
	}
}
