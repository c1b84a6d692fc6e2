package busadaptor

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tuxedocomputers/tccd/internal/logging"
)

// NewRouter builds the HTTP method-call surface for svc, mounted under
// /tccd/v1. Every route answers one bus method by name; getters are GET,
// setters POST, matching how the signal WebSocket sits alongside it on
// the same listener.
func NewRouter(svc *Service, logger logging.Logger) *mux.Router {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware(logger))

	api := router.PathPrefix("/tccd/v1").Subrouter()

	// Device
	api.HandleFunc("/device/name", jsonGet(svc.GetDeviceName)).Methods("GET")
	api.HandleFunc("/device/version", jsonGet(svc.UccdVersion)).Methods("GET")
	api.HandleFunc("/device/wmi-available", jsonGet(svc.TuxedoWmiAvailable)).Methods("GET")
	api.HandleFunc("/device/fan-hwmon-available", jsonGet(svc.FanHwmonAvailable)).Methods("GET")

	// Display
	api.HandleFunc("/display/is-x11", jsonGet(svc.GetIsX11)).Methods("GET")
	api.HandleFunc("/display/brightness", jsonGet(svc.GetDisplayBrightness)).Methods("GET")
	api.HandleFunc("/display/brightness", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Percent int32 `json:"percent"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.SetDisplayBrightness(req.Percent))
	}).Methods("POST")
	api.HandleFunc("/display/refresh-rate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Output string `json:"output"`
			Rate   int    `json:"rate"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.SetDisplayRefreshRate(r.Context(), req.Output, req.Rate))
	}).Methods("POST")

	// Fan
	api.HandleFunc("/fan/min-speed", jsonGet(svc.GetFansMinSpeed)).Methods("GET")
	api.HandleFunc("/fan/off-available", jsonGet(svc.GetFansOffAvailable)).Methods("GET")
	api.HandleFunc("/fan/status", jsonGet(svc.GetFanStatusJSON)).Methods("GET")
	api.HandleFunc("/fan/data/cpu", jsonGet(svc.GetFanDataCPU)).Methods("GET")
	api.HandleFunc("/fan/data/gpu1", jsonGet(svc.GetFanDataGPU1)).Methods("GET")
	api.HandleFunc("/fan/data/gpu2", jsonGet(svc.GetFanDataGPU2)).Methods("GET")
	api.HandleFunc("/fan/profile/cpu", rawBodySetter(svc.SetFanProfileCPU)).Methods("POST")
	api.HandleFunc("/fan/profile/dgpu", rawBodySetter(svc.SetFanProfileDGPU)).Methods("POST")
	api.HandleFunc("/fan/apply", rawBodySetter(svc.ApplyFanProfiles)).Methods("POST")
	api.HandleFunc("/fan/revert", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.RevertFanProfiles())
	}).Methods("POST")
	api.HandleFunc("/fan/profile/names", jsonGet(svc.GetFanProfileNames)).Methods("GET")
	api.HandleFunc("/fan/profile/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		result, err := svc.GetFanProfile(name)
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/fan/profile/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		body, ok := readRequestBody(w, r)
		if !ok {
			return
		}
		writeJSON(w, svc.SetFanProfile(name, body))
	}).Methods("POST")

	// CPU frequency
	api.HandleFunc("/cpu/frequency-limits", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetCpuFrequencyLimitsJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/cpu/governors", jsonGet(svc.GetAvailableGovernors)).Methods("GET")

	// Profiles
	api.HandleFunc("/profiles/active", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetActiveProfileJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/profiles", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetProfilesJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/profiles/custom", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetCustomProfilesJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/profiles/default", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetDefaultProfilesJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/profiles/default-values", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetDefaultValuesProfileJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/profiles/active/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetActiveProfile(mux.Vars(r)["id"]))
	}).Methods("POST")
	api.HandleFunc("/profiles/apply", rawBodySetter(svc.ApplyProfile)).Methods("POST")
	api.HandleFunc("/profiles/custom", rawBodySetter(svc.SaveCustomProfile)).Methods("POST")
	api.HandleFunc("/profiles/custom/add", rawBodySetter(svc.AddCustomProfile)).Methods("POST")
	api.HandleFunc("/profiles/custom/update", rawBodySetter(svc.UpdateCustomProfile)).Methods("POST")
	api.HandleFunc("/profiles/custom/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.DeleteCustomProfile(mux.Vars(r)["id"]))
	}).Methods("DELETE")
	api.HandleFunc("/profiles/temp/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetTempProfile(mux.Vars(r)["name"]))
	}).Methods("POST")
	api.HandleFunc("/profiles/temp-by-id/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetTempProfileById(mux.Vars(r)["id"]))
	}).Methods("POST")

	// State
	api.HandleFunc("/state/power", jsonGet(svc.GetPowerState)).Methods("GET")
	api.HandleFunc("/state/map", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StateKey  string `json:"stateKey"`
			ProfileID string `json:"profileId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.SetStateMap(req.StateKey, req.ProfileID))
	}).Methods("POST")

	// GPU / CPU telemetry
	api.HandleFunc("/telemetry/dgpu", jsonGet(svc.GetDGpuInfoValuesJSON)).Methods("GET")
	api.HandleFunc("/telemetry/igpu", jsonGet(svc.GetIGpuInfoValuesJSON)).Methods("GET")
	api.HandleFunc("/telemetry/cpu", jsonGet(svc.GetCpuPowerValuesJSON)).Methods("GET")
	api.HandleFunc("/telemetry/dgpu-d0-metrics", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		svc.SetDGpuD0Metrics(req.Enabled)
		writeJSON(w, true)
	}).Methods("POST")
	api.HandleFunc("/telemetry/collection-status", jsonGet(svc.GetSensorDataCollectionStatus)).Methods("GET")
	api.HandleFunc("/telemetry/collection-status", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		svc.SetSensorDataCollectionStatus(req.Enabled)
		writeJSON(w, true)
	}).Methods("POST")

	// ODM / TDP / NVIDIA
	api.HandleFunc("/odm/profiles", jsonGet(svc.ODMProfilesAvailable)).Methods("GET")
	api.HandleFunc("/odm/profile/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetODMProfile(mux.Vars(r)["name"]))
	}).Methods("POST")
	api.HandleFunc("/odm/power-limits", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.ODMPowerLimitsJSON()
		writeJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/odm/power-limits", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Values []int32 `json:"values"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.SetTDPValues(req.Values))
	}).Methods("POST")
	api.HandleFunc("/nvidia/power-ctrl/default", jsonGet(svc.GetNVIDIAPowerCTRLDefaultPowerLimit)).Methods("GET")
	api.HandleFunc("/nvidia/power-ctrl/max", jsonGet(svc.GetNVIDIAPowerCTRLMaxPowerLimit)).Methods("GET")
	api.HandleFunc("/nvidia/power-ctrl/available", jsonGet(svc.GetNVIDIAPowerCTRLAvailable)).Methods("GET")
	api.HandleFunc("/nvidia/ctgp-supported", jsonGet(svc.GetCTGPAdjustmentSupported)).Methods("GET")
	api.HandleFunc("/mode-reapply-pending", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.ConsumeModeReapplyPending())
	}).Methods("POST")

	// Charging
	api.HandleFunc("/charging/profile", jsonGet(svc.GetChargingProfile)).Methods("GET")
	api.HandleFunc("/charging/profile/{descriptor}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetChargingProfile(mux.Vars(r)["descriptor"]))
	}).Methods("POST")
	api.HandleFunc("/charging/priority", jsonGet(svc.GetChargingPriority)).Methods("GET")
	api.HandleFunc("/charging/priority/{descriptor}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetChargingPriority(mux.Vars(r)["descriptor"]))
	}).Methods("POST")
	api.HandleFunc("/charging/threshold/start", jsonGet(svc.GetChargeStartThreshold)).Methods("GET")
	api.HandleFunc("/charging/threshold/end", jsonGet(svc.GetChargeEndThreshold)).Methods("GET")
	api.HandleFunc("/charging/threshold/start/{value}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := intVar(w, r, "value")
		if !ok {
			return
		}
		writeJSON(w, svc.SetChargeStartThreshold(v))
	}).Methods("POST")
	api.HandleFunc("/charging/threshold/end/{value}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := intVar(w, r, "value")
		if !ok {
			return
		}
		writeJSON(w, svc.SetChargeEndThreshold(v))
	}).Methods("POST")
	api.HandleFunc("/charging/threshold/start/available", jsonGet(svc.GetChargeStartAvailableThresholds)).Methods("GET")
	api.HandleFunc("/charging/threshold/end/available", jsonGet(svc.GetChargeEndAvailableThresholds)).Methods("GET")
	api.HandleFunc("/charging/type", jsonGet(svc.GetChargeType)).Methods("GET")
	api.HandleFunc("/charging/type/{type}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.SetChargeType(mux.Vars(r)["type"]))
	}).Methods("POST")

	// Keyboard
	api.HandleFunc("/keyboard/capabilities", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetKeyboardBacklightCapabilitiesJSON()
		writeRawJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/keyboard/states", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.GetKeyboardBacklightStatesJSON()
		writeRawJSONOrError(w, result, err)
	}).Methods("GET")
	api.HandleFunc("/keyboard/states", rawBodySetter(svc.SetKeyboardBacklightStatesJSON)).Methods("POST")

	// Water cooler
	api.HandleFunc("/watercooler/supported", jsonGet(svc.GetWaterCoolerSupported)).Methods("GET")
	api.HandleFunc("/watercooler/available", jsonGet(svc.GetWaterCoolerAvailable)).Methods("GET")
	api.HandleFunc("/watercooler/connected", jsonGet(svc.GetWaterCoolerConnected)).Methods("GET")
	api.HandleFunc("/watercooler/fan-speed", jsonGet(svc.GetWaterCoolerFanSpeed)).Methods("GET")
	api.HandleFunc("/watercooler/pump-level", jsonGet(svc.GetWaterCoolerPumpLevel)).Methods("GET")
	api.HandleFunc("/watercooler/enable", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.EnableWaterCooler(req.Enabled))
	}).Methods("POST")
	api.HandleFunc("/watercooler/fan-speed", func(w http.ResponseWriter, r *http.Request) {
		v, ok := intBodyField(w, r, "percent")
		if !ok {
			return
		}
		writeJSON(w, svc.SetWaterCoolerFanSpeed(r.Context(), int32(v)))
	}).Methods("POST")
	api.HandleFunc("/watercooler/pump-voltage", func(w http.ResponseWriter, r *http.Request) {
		v, ok := intBodyField(w, r, "voltage")
		if !ok {
			return
		}
		writeJSON(w, svc.SetWaterCoolerPumpVoltage(r.Context(), int32(v)))
	}).Methods("POST")
	api.HandleFunc("/watercooler/led", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			R    byte `json:"r"`
			G    byte `json:"g"`
			B    byte `json:"b"`
			Mode int  `json:"mode"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.SetWaterCoolerLEDColor(r.Context(), req.R, req.G, req.B, req.Mode))
	}).Methods("POST")
	api.HandleFunc("/watercooler/led/off", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.TurnOffWaterCoolerLED(r.Context()))
	}).Methods("POST")
	api.HandleFunc("/watercooler/fan/off", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.TurnOffWaterCoolerFan(r.Context()))
	}).Methods("POST")
	api.HandleFunc("/watercooler/pump/off", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.TurnOffWaterCoolerPump(r.Context()))
	}).Methods("POST")
	api.HandleFunc("/watercooler/auto-control", jsonGet(svc.IsWaterCoolerAutoControlEnabled)).Methods("GET")

	// Other
	api.HandleFunc("/fnlock/supported", jsonGet(svc.GetFnLockSupported)).Methods("GET")
	api.HandleFunc("/fnlock/status", jsonGet(svc.GetFnLockStatus)).Methods("GET")
	api.HandleFunc("/fnlock/status", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, svc.SetFnLockStatus(req.Enabled))
	}).Methods("POST")
	api.HandleFunc("/display/force-yuv420-available", jsonGet(svc.GetForceYUV420OutputSwitchAvailable)).Methods("GET")
	api.HandleFunc("/webcam/info", jsonGet(svc.GetWebcamInfoJSON)).Methods("GET")
	api.HandleFunc("/webcam/available", jsonGet(svc.GetWebcamAvailable)).Methods("GET")
	api.HandleFunc("/webcam/enabled", jsonGet(svc.GetWebcamEnabled)).Methods("GET")

	return router
}

func loggingMiddleware(logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("busadaptor request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// jsonGet wraps a no-argument getter as a GET handler.
func jsonGet[T any](get func() T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, get())
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONOrError(w http.ResponseWriter, v string, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(v))
}

func writeRawJSONOrError(w http.ResponseWriter, v json.RawMessage, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func readRequestBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func rawBodySetter(setter func(data []byte) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readRequestBody(w, r)
		if !ok {
			return
		}
		writeJSON(w, setter(body))
	}
}

func intVar(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		http.Error(w, "malformed "+name, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func intBodyField(w http.ResponseWriter, r *http.Request, field string) (int, bool) {
	var req map[string]int
	if !decodeBody(w, r, &req) {
		return 0, false
	}
	return req[field], true
}
