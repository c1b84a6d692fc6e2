// Package cpupolicy applies per-CPU governor, EPP, turbo, online/offline,
// and min/max scaling frequency policy. It runs on start and whenever the
// coordinator calls Apply after a profile change; it has no periodic
// cadence of its own.
package cpupolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/tuxedocomputers/tccd/internal/sysfs"
)

const cpuRoot = "/sys/devices/system/cpu"

var cpuDirPattern = regexp.MustCompile(`^cpu(\d+)$`)

// Policy is the subset of a profile's CPU fields this package applies.
type Policy struct {
	Governor      string
	EPP           string
	NoTurbo       bool
	OnlineCores   *int32
	ScalingMinKHz *int32
	ScalingMaxKHz *int32
}

// Controller applies CPU policy across every online core.
type Controller struct {
	root string
}

// New returns a Controller bound to the standard /sys/devices/system/cpu
// tree.
func New() *Controller {
	return &Controller{root: cpuRoot}
}

// OnlineCPUIndices returns the sorted numeric indices of every cpuN
// directory under the CPU root, including core 0 (which has no "online"
// node and is always present).
func (c *Controller) OnlineCPUIndices() []int {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil
	}

	var indices []int
	for _, e := range entries {
		m := cpuDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices
}

func (c *Controller) cpuNode(index int, leaf string) *sysfs.Node {
	return sysfs.New(filepath.Join(c.root, fmt.Sprintf("cpu%d", index), leaf))
}

// Apply writes governor, EPP, no_turbo, online-core membership, and
// scaling min/max frequency to every present core, per spec 4.6. Core 0
// is never offlined regardless of p.OnlineCores. Errors from individual
// writes are swallowed per-core (a core that rejects a governor name
// should not abort the rest of the policy application), and none of
// them is reported to the caller.
func (c *Controller) Apply(p Policy) {
	for _, index := range c.OnlineCPUIndices() {
		if p.OnlineCores != nil && index != 0 {
			online := index < int(*p.OnlineCores)
			c.setOnline(index, online)
			if !online {
				continue
			}
		}

		if p.Governor != "" {
			c.cpuNode(index, "cpufreq/scaling_governor").WriteString(p.Governor)
		}
		if p.EPP != "" {
			c.cpuNode(index, "cpufreq/energy_performance_preference").WriteString(p.EPP)
		}
		if p.ScalingMinKHz != nil {
			c.cpuNode(index, "cpufreq/scaling_min_freq").WriteInt32(*p.ScalingMinKHz)
		}
		if p.ScalingMaxKHz != nil {
			c.cpuNode(index, "cpufreq/scaling_max_freq").WriteInt32(*p.ScalingMaxKHz)
		}
	}

	c.applyNoTurbo(p.NoTurbo)
}

func (c *Controller) setOnline(index int, online bool) {
	c.cpuNode(index, "online").WriteBool(online)
}

// applyNoTurbo tries the Intel pstate path first, then the AMD
// equivalent; whichever node exists wins.
func (c *Controller) applyNoTurbo(noTurbo bool) {
	intel := sysfs.New(filepath.Join(c.root, "intel_pstate", "no_turbo"))
	if intel.IsAvailable() {
		intel.WriteBool(noTurbo)
		return
	}
	amd := sysfs.New(filepath.Join(c.root, "cpufreq", "boost"))
	if amd.IsAvailable() {
		// AMD's "boost" node is inverted relative to "no_turbo": 1 means
		// boost enabled, so no_turbo=true means writing 0.
		amd.WriteBool(!noTurbo)
	}
}

// AvailableGovernors reads core 0's scaling_available_governors.
func (c *Controller) AvailableGovernors() []string {
	v, err := c.cpuNode(0, "cpufreq/scaling_available_governors").ReadStringList(' ')
	if err != nil {
		return nil
	}
	return v
}
