// Package fancurve implements the daemon's step-lookup temperature curve:
// given a sampled temperature and a 17-point table, find the fan and pump
// setpoint for the nearest 5 degree bucket at or below it. This is
// deliberately not linear interpolation.
package fancurve

import (
	"encoding/json"
	"fmt"
)

// PointCount is the fixed number of entries every fan table must have,
// one per 5 degree step from 20 to 100 inclusive.
const PointCount = 17

// MinTemp and MaxTemp bound the table's temperature axis.
const (
	MinTemp = 20
	MaxTemp = 100
	Step    = 5
)

// PumpVoltage is the water-cooler pump's discrete voltage enum.
type PumpVoltage int32

// Valid pump voltage levels, as exposed by the water-cooler's GATT
// characteristic.
const (
	PumpVoltage0  PumpVoltage = 0
	PumpVoltage7  PumpVoltage = 7
	PumpVoltage8  PumpVoltage = 8
	PumpVoltage9  PumpVoltage = 9
	PumpVoltage10 PumpVoltage = 10
	PumpVoltage11 PumpVoltage = 11
	PumpVoltage12 PumpVoltage = 12
)

// Point is one entry of a fan table: the fan percentage and pump voltage
// to hold at and above this point's temperature, until the next point.
type Point struct {
	Temp        int32       `json:"temp"`
	FanPercent  int32       `json:"fan"`
	PumpVoltage PumpVoltage `json:"pump"`
}

// Table is a validated 17-point fan curve, index i holding temperature
// 20+5*i.
type Table struct {
	Points [PointCount]Point
}

// NewTable validates points and returns a Table, or an error if the
// length isn't 17 or the temperatures aren't 20, 25, ..., 100.
func NewTable(points []Point) (*Table, error) {
	if len(points) != PointCount {
		return nil, fmt.Errorf("fan table must have %d points, got %d", PointCount, len(points))
	}
	var t Table
	for i, p := range points {
		expected := int32(MinTemp + Step*i)
		if p.Temp != expected {
			return nil, fmt.Errorf("fan table point %d: expected temp %d, got %d", i, expected, p.Temp)
		}
		t.Points[i] = p
	}
	return &t, nil
}

// index computes the step-lookup index for a temperature: floor((T-20)/5),
// clamped to [0, 16].
func index(tempC float64) int {
	i := int((tempC - MinTemp) / Step)
	if i < 0 {
		return 0
	}
	if i > PointCount-1 {
		return PointCount - 1
	}
	return i
}

// FanPercent returns the table's fan percentage for tempC via step-lookup.
func (t *Table) FanPercent(tempC float64) int32 {
	return t.Points[index(tempC)].FanPercent
}

// PumpVoltageAt returns the table's pump voltage for tempC via step-lookup.
func (t *Table) PumpVoltageAt(tempC float64) PumpVoltage {
	return t.Points[index(tempC)].PumpVoltage
}

// MarshalJSON emits the table as its 17 points, in temperature order.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Points[:])
}

// UnmarshalJSON decodes a 17-point array and validates its shape, so a
// malformed embedded fan table is rejected at the profile-codec boundary
// rather than silently truncated or zero-filled.
func (t *Table) UnmarshalJSON(data []byte) error {
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	table, err := NewTable(points)
	if err != nil {
		return err
	}
	*t = *table
	return nil
}

// WaterCoolerFanBucket returns the fan percentage bucketed to tens for
// the water-cooler's fan characteristic: bucket = clamp(fan/10, 0, 9),
// emitted as bucket*10 + 5.
func WaterCoolerFanBucket(fanPercent int32) int32 {
	bucket := fanPercent / 10
	if bucket < 0 {
		bucket = 0
	}
	if bucket > 9 {
		bucket = 9
	}
	return bucket*10 + 5
}
