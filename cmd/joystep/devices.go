package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	inputByIDDir = "/dev/input/by-id"
	inputDir     = "/dev/input"

	// fsnotify events arrive in bursts on plug/unplug; rescan once they settle.
	keyboardRescanDebounce = 500 * time.Millisecond
)

// KeyboardDevice is a keyboard evdev node found under /dev/input/by-id.
type KeyboardDevice struct {
	Name string // by-id link name
	Path string // resolved /dev/input/eventN
}

// scanKeyboards lists the "*-event-kbd" links in dir, resolved to their
// event nodes and sorted by path. A missing dir yields no devices.
func scanKeyboards(dir string) ([]KeyboardDevice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var devices []KeyboardDevice
	for _, entry := range entries {
		name := entry.Name()
		if !strings.Contains(name, "event") || !strings.Contains(name, "kbd") {
			continue
		}
		link := filepath.Join(dir, name)
		target, err := os.Readlink(link)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(link), target)
		}
		devices = append(devices, KeyboardDevice{Name: name, Path: filepath.Clean(target)})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// diffKeyboards compares the known set (keyed by path) with a fresh scan.
func diffKeyboards(known map[string]KeyboardDevice, scanned []KeyboardDevice) (added, removed []KeyboardDevice) {
	seen := make(map[string]bool, len(scanned))
	for _, d := range scanned {
		seen[d.Path] = true
		if _, ok := known[d.Path]; !ok {
			added = append(added, d)
		}
	}
	for path, d := range known {
		if !seen[path] {
			removed = append(removed, d)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Path < removed[j].Path })
	return added, removed
}

// KeyboardEvent reports a keyboard appearing or disappearing.
type KeyboardEvent struct {
	Added  bool
	Device KeyboardDevice
}

// KeyboardMonitor follows keyboard hotplug under /dev/input/by-id.
type KeyboardMonitor struct {
	dir    string
	logger *slog.Logger
	known  map[string]KeyboardDevice
}

func NewKeyboardMonitor(logger *slog.Logger) *KeyboardMonitor {
	return &KeyboardMonitor{
		dir:    inputByIDDir,
		logger: logger,
		known:  make(map[string]KeyboardDevice),
	}
}

// Run sends an Added event for every keyboard present at start, then
// follows changes until ctx is canceled. With watch false it returns after
// the initial scan.
func (m *KeyboardMonitor) Run(ctx context.Context, watch bool, out chan<- KeyboardEvent) error {
	if err := m.rescan(ctx, out); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// by-id is created with the first keyboard, so also watch its parent.
	for _, dir := range []string{inputDir, m.dir} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			m.logger.Warn("cannot watch input directory", "dir", dir, "error", err)
			continue
		}
		m.logger.Debug("watching input directory", "dir", dir)
	}

	debounce := time.NewTimer(keyboardRescanDebounce)
	debounce.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounce.C:
			pending = false
			if err := m.rescan(ctx, out); err != nil {
				m.logger.Warn("keyboard rescan failed", "error", err)
			}

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name == m.dir && ev.Op&fsnotify.Create != 0 {
				if err := watcher.Add(m.dir); err != nil {
					m.logger.Warn("cannot watch input directory", "dir", m.dir, "error", err)
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(keyboardRescanDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("input directory watch error", "error", err)
		}
	}
}

func (m *KeyboardMonitor) rescan(ctx context.Context, out chan<- KeyboardEvent) error {
	scanned, err := scanKeyboards(m.dir)
	if err != nil {
		return err
	}
	added, removed := diffKeyboards(m.known, scanned)

	send := func(ev KeyboardEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, d := range removed {
		delete(m.known, d.Path)
		m.logger.Info("keyboard removed", "name", d.Name, "path", d.Path)
		if !send(KeyboardEvent{Added: false, Device: d}) {
			return nil
		}
	}
	for _, d := range added {
		m.known[d.Path] = d
		m.logger.Info("keyboard found", "name", d.Name, "path", d.Path)
		if !send(KeyboardEvent{Added: true, Device: d}) {
			return nil
		}
	}
	return nil
}
