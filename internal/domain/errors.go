package domain

import (
	"errors"
	"fmt"
)

// Sentinel reasons carried by ValidationError. Each one names a single sensor
// invariant so callers can match the exact failure with errors.Is.
var (
	ErrStreamCount         = errors.New("sensor requires exactly four data streams")
	ErrIdentityMismatch    = errors.New("data streams do not share sensor name and coordinates")
	ErrInvalidChannel      = errors.New("data stream has an invalid channel (want A or B)")
	ErrInvalidDatasetKind  = errors.New("data stream has an invalid dataset kind (want Primary or Secondary)")
	ErrMissingPrimary      = errors.New("data streams include no primary dataset")
	ErrDuplicateStream     = errors.New("data streams repeat a channel and dataset kind combination")
	ErrConflictingLocation = errors.New("data streams are both inside and outside")
)

var (
	// ErrNegativePM25 is returned by AQI for concentrations below zero.
	ErrNegativePM25 = errors.New("PM2.5 must be positive")

	// ErrInvalidThreshold is returned for exposure thresholds that are not
	// finite and greater than zero.
	ErrInvalidThreshold = errors.New("AQI threshold must be greater than zero")

	// ErrThresholdType is returned when a threshold cannot be read as a number.
	ErrThresholdType = errors.New("AQI threshold must be numeric")
)

// ParseError reports a raw file name that does not carry sensor identity.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse file name %q: %s", e.Name, e.Reason)
}

// DataFormatError reports a raw file whose contents cannot be tabulated.
type DataFormatError struct {
	File string
	Line int // 1-based CSV line, 0 when not tied to a row
	Err  error
}

func (e *DataFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("data format %s line %d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("data format %s: %v", e.File, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// ValidationError reports a group of data streams that cannot form a Sensor.
type ValidationError struct {
	Sensor string
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("sensor %q: %v", e.Sensor, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// MissingFieldError reports a measurement field required by the observation
// sourcing table that is absent from its data stream.
type MissingFieldError struct {
	Sensor string
	Stream StreamKey
	Field  Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("sensor %q: stream %s has no %s field", e.Sensor, e.Stream, e.Field)
}
