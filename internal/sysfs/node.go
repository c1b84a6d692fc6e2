// Package sysfs provides typed, safe access to the kernel sysfs files the
// daemon reads hardware state from and writes policy to (fan PWM duty,
// charge thresholds, keyboard backlight, CPU governor knobs, and so on).
package sysfs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tuxedocomputers/tccd/internal/daemonerrors"
)

// Node wraps one sysfs file path. A Node is safe for concurrent reads;
// callers serialize writes the same way they'd serialize any other
// hardware mutation (through a single worker goroutine).
type Node struct {
	path string
}

// New returns a Node bound to path. The path is not touched until Read/Write.
func New(path string) *Node {
	return &Node{path: path}
}

// Path returns the underlying file path, for logging.
func (n *Node) Path() string {
	return n.path
}

// IsAvailable reports whether the node exists and is stat-able. A kernel
// module that isn't loaded (no BIOS support for this knob) simply won't
// have created the file.
func (n *Node) IsAvailable() bool {
	_, err := os.Stat(n.path)
	return err == nil
}

// ReadBool reads a "0"/"1" sysfs value.
func (n *Node) ReadBool() (bool, error) {
	raw, err := n.readRaw()
	if err != nil {
		return false, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return false, n.wrapErr(err, daemonerrors.KindParseInvalid, "sysfs.ReadBool")
	}
	return v != 0, nil
}

// WriteBool writes value as "0" or "1".
func (n *Node) WriteBool(value bool) error {
	if value {
		return n.writeRaw("1")
	}
	return n.writeRaw("0")
}

// ReadInt32 reads a decimal sysfs value into an int32.
func (n *Node) ReadInt32() (int32, error) {
	raw, err := n.readRaw()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, n.wrapErr(err, daemonerrors.KindParseInvalid, "sysfs.ReadInt32")
	}
	return int32(v), nil
}

// WriteInt32 writes value as a decimal integer.
func (n *Node) WriteInt32(value int32) error {
	return n.writeRaw(strconv.FormatInt(int64(value), 10))
}

// ReadInt64 reads a decimal sysfs value into an int64.
func (n *Node) ReadInt64() (int64, error) {
	raw, err := n.readRaw()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, n.wrapErr(err, daemonerrors.KindParseInvalid, "sysfs.ReadInt64")
	}
	return v, nil
}

// WriteInt64 writes value as a decimal integer.
func (n *Node) WriteInt64(value int64) error {
	return n.writeRaw(strconv.FormatInt(value, 10))
}

// ReadString reads a single-line sysfs value, trimmed of trailing newline.
func (n *Node) ReadString() (string, error) {
	return n.readRaw()
}

// WriteString writes value verbatim, with no trailing newline.
func (n *Node) WriteString(value string) error {
	return n.writeRaw(value)
}

// ReadIntList reads a delimiter-separated list that may contain ranges
// like "0-7", e.g. a CPU affinity mask such as "0-3,8-11". delim defaults
// to ',' when zero.
func (n *Node) ReadIntList(delim byte) ([]int32, error) {
	if delim == 0 {
		delim = ','
	}
	raw, err := n.readRaw()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var result []int32
	for _, token := range strings.Split(raw, string(delim)) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if dash := strings.IndexByte(token, '-'); dash > 0 {
			start, err := strconv.ParseInt(token[:dash], 10, 32)
			if err != nil {
				return nil, n.wrapErr(err, daemonerrors.KindParseInvalid, "sysfs.ReadIntList")
			}
			end, err := strconv.ParseInt(token[dash+1:], 10, 32)
			if err != nil {
				return nil, n.wrapErr(err, daemonerrors.KindParseInvalid, "sysfs.ReadIntList")
			}
			for i := start; i <= end; i++ {
				result = append(result, int32(i))
			}
			continue
		}

		v, err := strconv.ParseInt(token, 10, 32)
		if err != nil {
			return nil, n.wrapErr(err, daemonerrors.KindParseInvalid, "sysfs.ReadIntList")
		}
		result = append(result, int32(v))
	}
	return result, nil
}

// WriteIntList writes values joined by delim, with no range compaction
// (the kernel interfaces that accept this format also accept the
// fully-expanded form).
func (n *Node) WriteIntList(values []int32, delim byte) error {
	if delim == 0 {
		delim = ','
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return n.writeRaw(strings.Join(parts, string(delim)))
}

// ReadStringList reads a delimiter-separated list of tokens. delim defaults
// to ' ' when zero (matches the kernel's typical space-separated sysfs lists).
func (n *Node) ReadStringList(delim byte) ([]string, error) {
	if delim == 0 {
		delim = ' '
	}
	raw, err := n.readRaw()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var result []string
	for _, token := range strings.Split(raw, string(delim)) {
		token = strings.TrimSpace(token)
		if token != "" {
			result = append(result, token)
		}
	}
	return result, nil
}

// WriteStringList writes values joined by delim.
func (n *Node) WriteStringList(values []string, delim byte) error {
	if delim == 0 {
		delim = ' '
	}
	return n.writeRaw(strings.Join(values, string(delim)))
}

func (n *Node) readRaw() (string, error) {
	f, err := os.Open(n.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", n.wrapErr(err, daemonerrors.KindIONotPresent, "sysfs.Read")
		}
		return "", n.wrapErr(err, daemonerrors.KindIOTransient, "sysfs.Read")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", n.wrapErr(err, daemonerrors.KindIOTransient, "sysfs.Read")
		}
		return "", nil
	}
	return strings.TrimRight(scanner.Text(), "\r\n"), nil
}

func (n *Node) writeRaw(value string) error {
	f, err := os.OpenFile(n.path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return n.wrapErr(err, daemonerrors.KindIONotPresent, "sysfs.Write")
		}
		return n.wrapErr(err, daemonerrors.KindIOTransient, "sysfs.Write")
	}
	defer f.Close()

	if _, err := fmt.Fprint(f, value); err != nil {
		return n.wrapErr(err, daemonerrors.KindIOTransient, "sysfs.Write")
	}
	return nil
}

func (n *Node) wrapErr(cause error, kind daemonerrors.Kind, op string) *daemonerrors.DaemonError {
	de := daemonerrors.Wrap(cause, kind, op)
	de.Path = n.path
	return de
}
