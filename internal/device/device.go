package device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	CPU    = "cpu"
	CUDA   = "cuda"
	Metal  = "metal"
	Vulkan = "vulkan"
	OpenCL = "opencl"
	Auto   = "auto"
)

// ErrBind is the sentinel matched by every BindError.
var ErrBind = errors.New("device bind failed")

// Device identifies where inference executes. It is opaque to the chat
// engine beyond being stored and forwarded to the runtime.
type Device struct {
	Kind  string
	Index int
}

func (d Device) String() string {
	if d.Kind == Auto || d.Kind == CPU {
		return d.Kind
	}
	return d.Kind + ":" + strconv.Itoa(d.Index)
}

// Parse accepts "cpu", "cuda", "cuda:1", "metal:0" and "auto". An empty
// string is treated as auto.
func Parse(spec string) (Device, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return Device{Kind: Auto}, nil
	}
	kind, idx, hasIdx := strings.Cut(s, ":")
	switch kind {
	case CPU, CUDA, Metal, Vulkan, OpenCL, Auto:
	default:
		return Device{}, fmt.Errorf("unknown device %q (expected auto, cpu, cuda, metal, vulkan or opencl)", spec)
	}
	d := Device{Kind: kind}
	if !hasIdx {
		return d, nil
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return Device{}, fmt.Errorf("invalid device index in %q", spec)
	}
	if kind == Auto {
		return Device{}, fmt.Errorf("device %q does not take an index", spec)
	}
	d.Index = n
	return d, nil
}

// BindError reports that a model could not be placed on a device.
type BindError struct {
	Device Device
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Device, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBind }
