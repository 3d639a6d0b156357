package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_W     = 17
	KEY_A     = 30
	KEY_S     = 31
	KEY_D     = 32
	KEY_UP    = 103
	KEY_LEFT  = 105
	KEY_RIGHT = 106
	KEY_DOWN  = 108
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Detection and actuation defaults
const (
	defaultThreshold        = 0.04  // Minimum per-tick change on the chosen axis (G)
	defaultMinIntervalMS    = 200   // Minimum time between two steps (ms)
	defaultCalibrationMS    = 3000  // Calibration window (ms)
	defaultSampleIntervalMS = 50    // Sampling period (ms)
	defaultCadenceWindowMS  = 10000 // Sliding window for steps/minute (ms)

	defaultHoldTimeoutMS = 400 // Hold mode: release after this long without a step (ms)
	defaultPulseMS       = 250 // Pulse mode: key down time per step (ms)

	defaultVirtualKeyboardName = "joystep-virtual-keyboard"

	// How long OpenJoyCon waits for the first IMU report.
	joyConReadyTimeoutMS = 2000

	// Bounded waits for MQTT.
	mqttConnectTimeoutMS = 5000
	mqttPublishTimeoutMS = 500
)
