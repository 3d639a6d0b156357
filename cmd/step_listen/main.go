package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// step_listen prints the joystep WebSocket feed, one line per message.

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type stepData struct {
	Steps      int     `json:"steps"`
	Direction  string  `json:"direction"`
	Diff       float64 `json:"diff"`
	CadenceSPM float64 `json:"cadence_spm"`
}

type keyData struct {
	Direction string `json:"direction"`
	Reason    string `json:"reason"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8765/ws", "joystep step feed URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// The daemon pings every 20s; answer and keep the deadline moving.
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			printMessage(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func printMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	ts := "--:--:--.---"
	if env.Ts != nil {
		ts = env.Ts.Local().Format("15:04:05.000")
	}

	switch env.Type {
	case "step_detected":
		var s stepData
		if err := json.Unmarshal(env.Data, &s); err == nil {
			fmt.Printf("%s [STEP] #%d %s diff=%.3f cadence=%.0f/min\n", ts, s.Steps, s.Direction, s.Diff, s.CadenceSPM)
			return
		}

	case "key_pressed":
		var k keyData
		if err := json.Unmarshal(env.Data, &k); err == nil {
			fmt.Printf("%s [PRESS] %s\n", ts, k.Direction)
			return
		}

	case "key_released":
		var k keyData
		if err := json.Unmarshal(env.Data, &k); err == nil {
			fmt.Printf("%s [RELEASE] %s (%s)\n", ts, k.Direction, k.Reason)
			return
		}

	case "state_init":
		var pretty any
		if err := json.Unmarshal(env.Data, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("%s [STATE]\n%s\n", ts, string(out))
			return
		}
	}

	fmt.Printf("%s [%s] %s\n", ts, env.Type, string(env.Data))
}
