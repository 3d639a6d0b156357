package main

import "errors"

var (
	// ErrDeviceNotFound means no motion controller is available. Fatal at startup.
	ErrDeviceNotFound = errors.New("motion controller not found")

	// ErrInsufficientData means calibration collected fewer than 2 samples.
	ErrInsufficientData = errors.New("insufficient calibration data")

	// ErrInvalidSample marks a non-finite or malformed reading. The tick is skipped.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrActuatorFailure wraps press/release failures. Logged, never fatal.
	ErrActuatorFailure = errors.New("key actuator failure")

	// ErrNoSample is returned by a source that has not produced a reading yet.
	ErrNoSample = errors.New("no sample available yet")
)
