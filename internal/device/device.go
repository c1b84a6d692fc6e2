// Package device identifies which supported notebook model the daemon is
// running on, and derives the two hardware capability flags everything
// else (the water-cooler worker, the profile-settings worker's cTGP path)
// gates on.
package device

import (
	"strconv"

	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

// ID is one member of the closed set of notebook models this daemon
// knows how to drive, or Unknown for anything else.
type ID string

const (
	Unknown ID = ""

	IBP17G6          ID = "IBP17G6"
	IBPG8            ID = "IBPG8"
	IBPG10AMD        ID = "IBPG10AMD"
	POLARIS1XA02     ID = "POLARIS1XA02"
	POLARIS1XI02     ID = "POLARIS1XI02"
	POLARIS1XA03     ID = "POLARIS1XA03"
	POLARIS1XI03     ID = "POLARIS1XI03"
	STELLARIS1XA03   ID = "STELLARIS1XA03"
	STEPOL1XA04      ID = "STEPOL1XA04"
	STELLARIS1XI03   ID = "STELLARIS1XI03"
	STELLARIS1XI04   ID = "STELLARIS1XI04"
	PULSE1502        ID = "PULSE1502"
	PULSE1403        ID = "PULSE1403"
	PULSE1404        ID = "PULSE1404"
	STELLARIS1XI05   ID = "STELLARIS1XI05"
	POLARIS1XA05     ID = "POLARIS1XA05"
	STELLARIS1XA05   ID = "STELLARIS1XA05"
	STELLARIS16I06   ID = "STELLARIS16I06"
	STELLARIS17I06   ID = "STELLARIS17I06"
	STELLSL15A06     ID = "STELLSL15A06"
	STELLSL15I06     ID = "STELLSL15I06"
	AURA14G3         ID = "AURA14G3"
	AURA15G3         ID = "AURA15G3"
	STELLARIS16A07   ID = "STELLARIS16A07"
	STELLARIS16I07   ID = "STELLARIS16I07"
	XNE16A25         ID = "XNE16A25"
	XNE16E25         ID = "XNE16E25"
	SIRIUS1601       ID = "SIRIUS1601"
	SIRIUS1602       ID = "SIRIUS1602"
	IBP14G6TUX       ID = "IBP14G6_TUX"
	IBP14G6TRX       ID = "IBP14G6_TRX"
	IBP14G6TQF       ID = "IBP14G6_TQF"
	IBP14G7AQFARX    ID = "IBP14G7_AQF_ARX"
)

// dmiSKUDeviceMap maps /sys/class/dmi/id/product_sku to a device ID.
var dmiSKUDeviceMap = map[string]ID{
	"IBS1706":                       IBP17G6,
	"IBP1XI08MK1":                   IBPG8,
	"IBP1XI08MK2":                   IBPG8,
	"IBP14I08MK2":                   IBPG8,
	"IBP16I08MK2":                   IBPG8,
	"OMNIA08IMK2":                   IBPG8,
	"IBP14A10MK1 / IBP15A10MK1":     IBPG10AMD,
	"IIBP14A10MK1 / IBP15A10MK1":    IBPG10AMD,
	"POLARIS1XA02":                  POLARIS1XA02,
	"POLARIS1XI02":                  POLARIS1XI02,
	"POLARIS1XA03":                  POLARIS1XA03,
	"POLARIS1XI03":                  POLARIS1XI03,
	"STELLARIS1XA03":                STELLARIS1XA03,
	"STEPOL1XA04":                   STEPOL1XA04,
	"STELLARIS1XI03":                STELLARIS1XI03,
	"STELLARIS1XI04":                STELLARIS1XI04,
	"PULSE1502":                     PULSE1502,
	"PULSE1403":                     PULSE1403,
	"PULSE1404":                     PULSE1404,
	"STELLARIS1XI05":                STELLARIS1XI05,
	"POLARIS1XA05":                  POLARIS1XA05,
	"STELLARIS1XA05":                STELLARIS1XA05,
	"STELLARIS16I06":                STELLARIS16I06,
	"STELLARIS17I06":                STELLARIS17I06,
	"STELLSL15A06":                  STELLSL15A06,
	"STELLSL15I06":                  STELLSL15I06,
	"AURA14GEN3":                    AURA14G3,
	"AURA15GEN3":                    AURA15G3,
	"STELLARIS16A07":                STELLARIS16A07,
	"STELLARIS16I07":                STELLARIS16I07,
	"XNE16A25":                      XNE16A25,
	"XNE16E25":                      XNE16E25,
	"SIRIUS1601":                    SIRIUS1601,
	"SIRIUS1602":                    SIRIUS1602,
}

// uwidDeviceMap maps the vendor module's numeric model id (read from
// tuxedo_io, parsed decimal) to a device ID, used as a fallback for
// models the DMI SKU table doesn't cover.
var uwidDeviceMap = map[int]ID{
	0x13: IBP14G6TUX,
	0x12: IBP14G6TRX,
	0x14: IBP14G6TQF,
	0x17: IBP14G7AQFARX,
}

// waterCoolerDevices is the allow-list of models the Aquaris liquid
// cooler ships for.
var waterCoolerDevices = map[ID]struct{}{
	STELLARIS1XI04: {},
	STEPOL1XA04:    {},
	STELLARIS1XI05: {},
	STELLARIS16I06: {},
	STELLARIS17I06: {},
	STELLARIS16A07: {},
	XNE16A25:       {},
	XNE16E25:       {},
	STELLARIS16I07: {},
}

// cTGPHiddenDevices is the deny-list of models where nvidia-smi reports
// cTGP adjustment support but applying an offset has undefined behavior.
var cTGPHiddenDevices = map[ID]struct{}{
	IBP14G6TUX:    {},
	IBP14G6TRX:    {},
	IBP14G6TQF:    {},
	IBP14G7AQFARX: {},
	IBPG8:         {},
	IBPG10AMD:     {},
}

// Capabilities are the two feature flags derived from an identified
// device. Unknown disables both.
type Capabilities struct {
	WaterCoolerSupported    bool
	CTGPAdjustmentSupported bool
}

// Identify reads DMI and the vendor module's reported model id and
// resolves them to a device ID, or Unknown if neither lookup matches.
// moduleIDStr is the raw string read from the vendor I/O module (parsed
// as a decimal integer; parse failures fall through to Unknown).
func Identify(dmiBasePath, moduleIDStr string) ID {
	productSKU, _ := sysfs.New(dmiBasePath + "/product_sku").ReadString()

	if id, ok := dmiSKUDeviceMap[productSKU]; ok {
		return id
	}

	modelID, err := strconv.Atoi(moduleIDStr)
	if err == nil {
		if id, ok := uwidDeviceMap[modelID]; ok {
			return id
		}
	}

	return Unknown
}

// CapabilitiesFor derives the capability flags for an identified device.
func CapabilitiesFor(id ID) Capabilities {
	if id == Unknown {
		return Capabilities{}
	}
	_, waterCooler := waterCoolerDevices[id]
	_, cTGPHidden := cTGPHiddenDevices[id]
	return Capabilities{
		WaterCoolerSupported:    waterCooler,
		CTGPAdjustmentSupported: !cTGPHidden,
	}
}
