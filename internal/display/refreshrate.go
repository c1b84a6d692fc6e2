package display

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tuxedocomputers/tccd/internal/procexec"
)

// Mode is one display mode: a resolution with its available refresh
// rates.
type Mode struct {
	XResolution  int       `json:"xResolution"`
	YResolution  int       `json:"yResolution"`
	RefreshRates []float64 `json:"refreshRates"`
}

// Info is the parsed output of `xrandr --query` for the active output.
type Info struct {
	DisplayName  string `json:"displayName"`
	ActiveMode   Mode   `json:"activeMode"`
	DisplayModes []Mode `json:"displayModes"`
}

// outputLine matches an xrandr output header, e.g. "eDP-1 connected primary 1920x1080+0+0 ...".
var outputLine = regexp.MustCompile(`^(\S+) connected`)

// modeLine matches a resolution line, e.g. "   1920x1080     60.00*+  59.94  ".
var modeLine = regexp.MustCompile(`^\s+(\d+)x(\d+)\s+(.+)$`)

// rateToken matches one refresh-rate token, optionally marked current
// (*) and/or preferred (+).
var rateToken = regexp.MustCompile(`(\d+(?:\.\d+)?)(\*?)(\+?)`)

// ParseXrandrOutput parses `xrandr --query` stdout into an Info for the
// first connected output, or nil if none is found.
func ParseXrandrOutput(output string) *Info {
	lines := strings.Split(output, "\n")

	var info *Info
	var activeXRes, activeYRes int
	var activeRate float64

	for _, line := range lines {
		if m := outputLine.FindStringSubmatch(line); m != nil {
			if info != nil {
				break // only the first connected output, matching the original's single-display focus
			}
			info = &Info{DisplayName: m[1]}
			continue
		}
		if info == nil {
			continue
		}
		if m := modeLine.FindStringSubmatch(line); m != nil {
			xRes, _ := strconv.Atoi(m[1])
			yRes, _ := strconv.Atoi(m[2])
			mode := Mode{XResolution: xRes, YResolution: yRes}

			for _, tok := range rateToken.FindAllStringSubmatch(m[3], -1) {
				rate, err := strconv.ParseFloat(tok[1], 64)
				if err != nil {
					continue
				}
				mode.RefreshRates = append(mode.RefreshRates, rate)
				if tok[2] == "*" {
					activeXRes, activeYRes, activeRate = xRes, yRes, rate
				}
			}
			info.DisplayModes = append(info.DisplayModes, mode)
		}
	}

	if info == nil {
		return nil
	}
	info.ActiveMode = Mode{XResolution: activeXRes, YResolution: activeYRes, RefreshRates: []float64{activeRate}}
	return info
}

// SessionType classifies a session as X11, Wayland, or neither.
// DetectSessionType works only on the XDG_SESSION_TYPE string its
// caller passes in; nothing in this package reads the environment of
// a desktop process. The daemon passes its own environment's value.
type SessionType string

const (
	SessionX11     SessionType = "x11"
	SessionWayland SessionType = "wayland"
	SessionUnknown SessionType = ""
)

// DetectSessionType classifies raw XDG_SESSION_TYPE content.
func DetectSessionType(xdgSessionType string) SessionType {
	switch strings.ToLower(strings.TrimSpace(xdgSessionType)) {
	case "x11":
		return SessionX11
	case "wayland":
		return SessionWayland
	default:
		return SessionUnknown
	}
}

// QueryDisplayModes runs `xrandr --query` via runner with the given
// DISPLAY/XAUTHORITY environment and parses the result.
func QueryDisplayModes(ctx context.Context, runner procexec.Runner, display, xauthority string) (*Info, error) {
	restoreDisplay := setEnv("DISPLAY", display)
	restoreXAuth := setEnv("XAUTHORITY", xauthority)
	defer restoreDisplay()
	defer restoreXAuth()

	out, err := runner.Run(ctx, "xrandr", "--query")
	if err != nil {
		return nil, err
	}
	return ParseXrandrOutput(out), nil
}

// SetRefreshRate invokes `xrandr --output <name> --rate <rate>`.
func SetRefreshRate(ctx context.Context, runner procexec.Runner, outputName string, rate int) bool {
	_, err := runner.Run(ctx, "xrandr", "--output", outputName, "--rate", strconv.Itoa(rate))
	return err == nil
}

func setEnv(key, value string) func() {
	original, had := os.LookupEnv(key)
	os.Setenv(key, value)
	return func() {
		if had {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	}
}

// LoggedInUsers parses `who` output into a stable, sorted, deduplicated
// username list, used to detect login/logout transitions that should
// reset refresh-rate state.
func LoggedInUsers(ctx context.Context, runner procexec.Runner) ([]string, error) {
	out, err := runner.Run(ctx, "who")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var users []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if _, ok := seen[fields[0]]; ok {
			continue
		}
		seen[fields[0]] = struct{}{}
		users = append(users, fields[0])
	}
	sort.Strings(users)
	return users, nil
}
