// Package fnlock controls the Fn-key lock through the tuxedo_keyboard
// kernel module: when enabled, F1-F12 act as media keys by default and
// Fn+Fkey gives the traditional F-key function.
package fnlock

import "github.com/tuxedocomputers/tccd/internal/sysfs"

const fnLockPath = "/sys/devices/platform/tuxedo_keyboard/fn_lock"

// Controller reads and writes the Fn-lock sysfs node.
type Controller struct {
	node *sysfs.Node
}

// New returns a Controller bound to the standard tuxedo_keyboard path.
func New() *Controller {
	return &Controller{node: sysfs.New(fnLockPath)}
}

// Supported reports whether the fn_lock sysfs node exists on this system.
func (c *Controller) Supported() bool {
	return c.node.IsAvailable()
}

// Status returns the current Fn-lock state, false if unsupported or on
// any read error.
func (c *Controller) Status() bool {
	if !c.Supported() {
		return false
	}
	v, err := c.node.ReadBool()
	if err != nil {
		return false
	}
	return v
}

// SetStatus enables or disables Fn-lock, reporting false if unsupported
// or the write fails.
func (c *Controller) SetStatus(enabled bool) bool {
	if !c.Supported() {
		return false
	}
	return c.node.WriteBool(enabled) == nil
}
