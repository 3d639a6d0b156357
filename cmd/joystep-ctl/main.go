package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// joystep-ctl - Command-line IPC Client
// ============================================================================
// Sends commands to the joystep daemon over its Unix socket.
//
// Usage:
//   joystep-ctl direction up-left
//   joystep-ctl release
//   joystep-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/joystep.sock)
// ============================================================================

// Envelope is the request wire format (mirrors the daemon's EventEnvelope).
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response. State is kept raw and
// pretty-printed as is.
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

const dialTimeout = 2 * time.Second

var directions = []string{"up", "down", "left", "right", "up-left", "up-right", "down-left", "down-right"}

func main() {
	socketPath := "/tmp/joystep.sock"

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	req, err := buildRequest(args)
	if err != nil {
		if errors.Is(err, errHelp) {
			printUsage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	resp, err := send(socketPath, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.State) > 0 {
		var pretty any
		if err := json.Unmarshal(resp.State, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
		fmt.Println(string(resp.State))
		return
	}
	fmt.Println("ok")
}

var errHelp = errors.New("help requested")

func buildRequest(args []string) (Envelope, error) {
	switch args[0] {
	case "direction", "dir", "set-direction":
		if len(args) < 2 {
			return Envelope{}, fmt.Errorf("direction requires one of: %s", strings.Join(directions, ", "))
		}
		data, err := json.Marshal(map[string]string{"direction": strings.ToLower(args[1])})
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Type: "set_direction", Data: data}, nil

	case "release":
		return Envelope{Type: "release"}, nil

	case "status":
		return Envelope{Type: "status"}, nil

	case "help", "-h", "--help":
		return Envelope{}, errHelp

	default:
		return Envelope{}, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, req Envelope) (IPCResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `joystep-ctl - Control the joystep daemon via IPC

Usage:
  joystep-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/joystep.sock)

Commands:
  direction DIR   Set the step direction (%s)
  release         Release any held key now
  status          Print the daemon state as JSON
  help            Show this help message

Examples:
  joystep-ctl direction up-left
  joystep-ctl -socket /run/joystep.sock status
`, strings.Join(directions, ", "))
}
