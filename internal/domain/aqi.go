package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AQICategory is one row of the EPA PM2.5 breakpoint table.
type AQICategory struct {
	Name   string
	PMLow  float64
	PMHigh float64
	AQILow float64
	AQIHi  float64
}

// Breakpoints is an ordered, non-overlapping PM2.5 breakpoint table.
type Breakpoints []AQICategory

// EPABreakpoints is the 2016 EPA PM2.5 table (AirNow technical assistance
// document, May 2016).
var EPABreakpoints = Breakpoints{
	{Name: "good", PMLow: 0.0, PMHigh: 12.0, AQILow: 0, AQIHi: 50},
	{Name: "moderate", PMLow: 12.1, PMHigh: 35.4, AQILow: 51, AQIHi: 100},
	{Name: "unhealthy_for_sensitive_groups", PMLow: 35.5, PMHigh: 55.4, AQILow: 101, AQIHi: 150},
	{Name: "unhealthy", PMLow: 55.5, PMHigh: 150.4, AQILow: 151, AQIHi: 200},
	{Name: "very_unhealthy", PMLow: 150.5, PMHigh: 250.4, AQILow: 201, AQIHi: 300},
	{Name: "hazardous", PMLow: 250.5, PMHigh: 500.4, AQILow: 301, AQIHi: 500},
}

// AQI converts a PM2.5 concentration in µg/m³ to an AQI value using the EPA
// table. NaN passes through as NaN.
func AQI(pm25 float64) (float64, error) {
	return EPABreakpoints.AQI(pm25)
}

// Category returns the breakpoint row for pm25 after rounding to one decimal.
// Values above the table fall into the top category.
func (b Breakpoints) Category(pm25 float64) AQICategory {
	pm := roundTenth(pm25)
	for _, c := range b {
		if pm >= c.PMLow && pm <= c.PMHigh {
			return c
		}
	}
	return b[len(b)-1]
}

// AQI applies the piecewise-linear breakpoint formula. Concentrations beyond
// the top category are extrapolated along it.
func (b Breakpoints) AQI(pm25 float64) (float64, error) {
	if math.IsNaN(pm25) {
		return math.NaN(), nil
	}
	if pm25 < 0 {
		return 0, fmt.Errorf("%w: got %v", ErrNegativePM25, pm25)
	}
	pm := roundTenth(pm25)
	c := b.Category(pm)
	return (c.AQIHi-c.AQILow)/(c.PMHigh-c.PMLow)*(pm-c.PMLow) + c.AQILow, nil
}

// roundTenth rounds half to even, so 0.05 becomes 0.0 and 0.25 becomes 0.2.
func roundTenth(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

// ParseThreshold reads an exposure threshold from text. Non-numeric text fails
// with ErrThresholdType; numbers that are not finite and positive fail with
// ErrInvalidThreshold.
func ParseThreshold(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrThresholdType, raw)
	}
	if err := checkThreshold(v); err != nil {
		return 0, err
	}
	return v, nil
}

func checkThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, v)
	}
	return nil
}
