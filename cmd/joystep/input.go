package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// deviceEvent is an inputEvent tagged with the device node it came from.
type deviceEvent struct {
	Device string
	inputEvent
}

var inputEventSize = binary.Size(inputEvent{})

func decodeInputEvent(reader *bytes.Reader, buf []byte) (inputEvent, error) {
	reader.Reset(buf)
	var ev inputEvent
	err := binary.Read(reader, binary.LittleEndian, &ev)
	return ev, err
}

// readInputEvents reads one device until it fails, is closed, or done is
// closed. The read error (io.EOF, ENODEV on unplug, os.ErrClosed) is sent
// to readErr; nothing is sent when done ends the reader.
func readInputEvents(f *os.File, events chan<- deviceEvent, readErr chan<- error, done <-chan struct{}) {
	buf := make([]byte, inputEventSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
			return
		}

		ev, err := decodeInputEvent(reader, buf)
		if err != nil {
			// Skip malformed events
			continue
		}

		select {
		case events <- deviceEvent{Device: f.Name(), inputEvent: ev}:
		case <-done:
			return
		}
	}
}

// EVIOCGNAME(256)
const eviocgname256 = 0x81004506

// deviceName returns the evdev device name.
//
// It goes through SyscallConn so the file stays in non-blocking mode and a
// pending Read can still be interrupted by Close.
func deviceName(f *os.File) (string, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return "", err
	}

	var name [256]byte
	var errno unix.Errno
	if err := rc.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(
			unix.SYS_IOCTL,
			fd,
			uintptr(eviocgname256),
			uintptr(unsafe.Pointer(&name[0])),
		)
	}); err != nil {
		return "", err
	}
	if errno != 0 {
		return "", fmt.Errorf("EVIOCGNAME %s: %w", f.Name(), errno)
	}

	n := bytes.IndexByte(name[:], 0)
	if n < 0 {
		n = len(name)
	}
	return string(name[:n]), nil
}
