//go:build linux

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// epollWaitMS bounds each epoll_wait so the reader notices done.
const epollWaitMS = 250

// readInputEventsEpoll reads from a fixed set of input devices with one
// goroutine and one epoll instance.
//
// A device that hangs up is dropped and the others keep being read. The
// function returns when done is closed, or sends to readErr when no device
// is left or epoll itself fails.
func readInputEventsEpoll(files []*os.File, events chan<- deviceEvent, readErr chan<- error, done <-chan struct{}) {
	if len(files) == 0 {
		readErr <- errors.New("no input devices provided")
		return
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		readErr <- fmt.Errorf("epoll_create1: %w", err)
		return
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File)

	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			readErr <- fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
			return
		}
	}

	drop := func(fd int) {
		_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(fdToFile, fd)
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize)
	reader := bytes.NewReader(buf)

	for {
		select {
		case <-done:
			return
		default:
		}

		if len(fdToFile) == 0 {
			readErr <- errors.New("all input devices are gone")
			return
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollWaitMS)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			readErr <- fmt.Errorf("epoll_wait: %w", err)
			return
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f, ok := fdToFile[fd]
			if !ok {
				continue
			}

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				drop(fd)
				continue
			}

			if _, err := f.Read(buf); err != nil {
				drop(fd)
				continue
			}

			ev, err := decodeInputEvent(reader, buf)
			if err != nil {
				continue
			}

			select {
			case events <- deviceEvent{Device: f.Name(), inputEvent: ev}:
			case <-done:
				return
			}
		}
	}
}
