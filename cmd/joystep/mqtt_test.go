package main

import (
	"encoding/json"
	"testing"
)

func TestMQTTMessage_Topics(t *testing.T) {
	tests := []struct {
		name      string
		b         StateBroadcast
		wantTopic string
		wantType  string
	}{
		{"step", BroadcastStep{Step: StepEvent{Seq: 1, At: at(50), Diff: 0.3}, Direction: DirUp}, "joystep/step", "step_detected"},
		{"press", BroadcastKeyPressed{Direction: DirUp, At: at(60)}, "joystep/key", "key_pressed"},
		{"release", BroadcastKeyReleased{Direction: DirUp, Reason: ReleaseShutdown, At: at(70)}, "joystep/key", "key_released"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, payload, ok, err := mqttMessage("joystep", tt.b)
			if err != nil || !ok {
				t.Fatalf("mqttMessage = ok %v, err %v", ok, err)
			}
			if topic != tt.wantTopic {
				t.Fatalf("topic = %q, want %q", topic, tt.wantTopic)
			}
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(payload, &env); err != nil {
				t.Fatalf("payload %s: %v", payload, err)
			}
			if env.Type != tt.wantType {
				t.Fatalf("type = %q, want %q", env.Type, tt.wantType)
			}
		})
	}
}

type unknownBroadcast struct{}

func (unknownBroadcast) broadcastMarker() {}

func TestMQTTMessage_SkipsUnknown(t *testing.T) {
	_, _, ok, err := mqttMessage("joystep", unknownBroadcast{})
	if ok || err != nil {
		t.Fatalf("mqttMessage(unknown) = ok %v, err %v", ok, err)
	}
}
