package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samcharles93/llmchat/internal/device"
)

var (
	ErrContextLength      = errors.New("context length exceeded")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrUnsupportedDevice  = errors.New("device not supported by runtime")
	ErrInsufficientMemory = errors.New("insufficient device memory")
	ErrUnknownRuntime     = errors.New("unknown runtime")
)

// Model is the compute runtime seen by the chat engine. Prefill seeds the
// model state with a run of prompt tokens and Decode feeds a single token;
// both return the logits for the next position. Calls are not cancelable.
type Model interface {
	Prefill(ids []int) ([]float32, error)
	Decode(id int) ([]float32, error)
	Reset()
	Close() error
}

// Options configure model placement.
type Options struct {
	VocabSize   int
	Hidden      int
	MaxContext  int
	MemoryLimit int64
	Seed        int64

	// Script holds per-turn token sequences for the script runtime.
	Script [][]int
}

// Factory places a model on a device.
type Factory func(dev device.Device, opts Options) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"toy":    newToyFactory,
		"script": newScriptFactory,
	}
)

// Register makes a factory available under name. Registering a name twice
// replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = f
}

// Names lists registered runtimes in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open resolves name in the registry and places the model on dev.
func Open(name string, dev device.Device, opts Options) (Model, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownRuntime, name, strings.Join(Names(), ", "))
	}
	return f(dev, opts)
}

// ResolveCPU maps auto onto the CPU and rejects every other accelerator.
// The in-tree runtimes only execute on the host.
func ResolveCPU(dev device.Device) (device.Device, error) {
	switch dev.Kind {
	case device.Auto, device.CPU:
		return device.Device{Kind: device.CPU}, nil
	default:
		return device.Device{}, fmt.Errorf("%w: %s", ErrUnsupportedDevice, dev)
	}
}
