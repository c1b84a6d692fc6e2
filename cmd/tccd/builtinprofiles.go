package main

import (
	"github.com/tuxedocomputers/tccd/internal/fancurve"
	"github.com/tuxedocomputers/tccd/internal/profile"
)

// rampTable builds a 17 point fan table that holds minPercent up to
// holdUntilC, then ramps linearly to maxPercent by fancurve.MaxTemp. Pump
// voltage follows the same ramp across the pump's discrete enum.
func rampTable(minPercent, maxPercent int32, holdUntilC int32) *fancurve.Table {
	points := make([]fancurve.Point, fancurve.PointCount)
	pumpSteps := []fancurve.PumpVoltage{
		fancurve.PumpVoltage0, fancurve.PumpVoltage7, fancurve.PumpVoltage8,
		fancurve.PumpVoltage9, fancurve.PumpVoltage10, fancurve.PumpVoltage11, fancurve.PumpVoltage12,
	}
	for i := 0; i < fancurve.PointCount; i++ {
		temp := int32(fancurve.MinTemp + fancurve.Step*i)
		var percent int32
		switch {
		case temp <= holdUntilC:
			percent = minPercent
		case temp >= fancurve.MaxTemp:
			percent = maxPercent
		default:
			span := fancurve.MaxTemp - holdUntilC
			percent = minPercent + (maxPercent-minPercent)*(temp-holdUntilC)/span
		}
		pumpIdx := percent * int32(len(pumpSteps)-1) / 100
		if pumpIdx >= int32(len(pumpSteps)) {
			pumpIdx = int32(len(pumpSteps) - 1)
		}
		points[i] = fancurve.Point{Temp: temp, FanPercent: percent, PumpVoltage: pumpSteps[pumpIdx]}
	}
	table, err := fancurve.NewTable(points)
	if err != nil {
		// Only possible if PointCount/Step drift out of sync with the
		// loop above, which would be a programming error, not a runtime
		// condition to recover from.
		panic(err)
	}
	return table
}

// builtinProfiles returns the daemon's built-in, read-only profile set:
// quiet, balanced, and performance. They are never persisted and never
// accepted by the custom-profile mutation RPCs (profile.IsReadOnly gates
// on their IDs being present in this table).
func builtinProfiles() *profile.DefaultTable {
	quiet := &profile.Profile{
		ID:   "quiet",
		Name: "Quiet",
		CPU: profile.CPU{
			Governor: "powersave",
			EPP:      "power",
			NoTurbo:  true,
		},
		Fan: profile.Fan{
			UseControl:     true,
			OffsetFanspeed: 0,
			TableCPU:       rampTable(0, 70, 60),
			TableGPU:       rampTable(0, 70, 65),
		},
		ChargeStartThreshold: profile.ChargeThresholdUnset,
		ChargeEndThreshold:   profile.ChargeThresholdUnset,
	}

	balanced := &profile.Profile{
		ID:   "balanced",
		Name: "Balanced",
		CPU: profile.CPU{
			Governor: "powersave",
			EPP:      "balance_performance",
		},
		Fan: profile.Fan{
			UseControl:     true,
			OffsetFanspeed: 0,
			TableCPU:       rampTable(20, 100, 55),
			TableGPU:       rampTable(20, 100, 60),
		},
		ChargeStartThreshold: profile.ChargeThresholdUnset,
		ChargeEndThreshold:   profile.ChargeThresholdUnset,
	}

	performance := &profile.Profile{
		ID:   "performance",
		Name: "Performance",
		CPU: profile.CPU{
			Governor: "performance",
			EPP:      "performance",
		},
		Fan: profile.Fan{
			UseControl:     true,
			OffsetFanspeed: 10,
			AutoControlWC:  true,
			TableCPU:       rampTable(40, 100, 45),
			TableGPU:       rampTable(40, 100, 50),
			TableWaterCoolerFan: rampTable(30, 100, 45),
			TablePump:           rampTable(30, 100, 45),
		},
		ChargeStartThreshold: profile.ChargeThresholdUnset,
		ChargeEndThreshold:   profile.ChargeThresholdUnset,
	}

	return profile.NewDefaultTable(quiet, balanced, performance)
}
