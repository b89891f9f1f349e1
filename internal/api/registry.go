package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/chatmod"
)

// ModuleFactory builds a chat module; chatmod.CreateChatModule in
// production.
type ModuleFactory func(ctx context.Context, deviceSpec string, opts chatmod.Options) (*chatmod.Module, error)

// RegistryConfig holds the defaults applied to every module.
type RegistryConfig struct {
	Device     string
	Base       chatmod.Options
	MaxModules int
	Factory    ModuleFactory
}

// Registry owns the live chat modules of a server.
type Registry struct {
	cfg     RegistryConfig
	mu      sync.Mutex
	modules map[string]*chatmod.Module
	// pending counts creates holding a slot while the factory runs.
	pending int
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Factory == nil {
		cfg.Factory = chatmod.CreateChatModule
	}
	return &Registry{
		cfg:     cfg,
		modules: make(map[string]*chatmod.Module),
	}
}

// Create builds a module from the defaults overridden by req.
func (r *Registry) Create(ctx context.Context, req CreateModuleRequest) (*chatmod.Module, error) {
	opts := r.cfg.Base
	cfg := opts.Config
	if cfg.MaxGenLen == 0 && cfg.MaxWindowSize == 0 {
		cfg = chat.DefaultConfig()
	}
	if req.ConvTemplate != "" {
		cfg.ConvTemplate = req.ConvTemplate
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		cfg.TopP = *req.TopP
	}
	if req.MaxGenLen != nil {
		cfg.MaxGenLen = *req.MaxGenLen
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.StopStr != nil {
		cfg.StopStr = *req.StopStr
	}
	if err := cfg.Validate(); err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	opts.Config = cfg
	opts.ID = req.ID
	if req.Runtime != "" {
		opts.Runtime = req.Runtime
	}
	dev := r.cfg.Device
	if req.Device != "" {
		dev = req.Device
	}

	r.mu.Lock()
	if r.cfg.MaxModules > 0 && len(r.modules)+r.pending >= r.cfg.MaxModules {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrTooManyModules, r.cfg.MaxModules)
	}
	if _, dup := r.modules[req.ID]; req.ID != "" && dup {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrModuleExists, req.ID)
	}
	r.pending++
	r.mu.Unlock()

	m, err := r.cfg.Factory(ctx, dev, opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if err != nil {
		return nil, err
	}
	if _, dup := r.modules[m.ID()]; dup {
		_ = m.Close()
		return nil, fmt.Errorf("%w: %s", ErrModuleExists, m.ID())
	}
	r.modules[m.ID()] = m
	return m, nil
}

func (r *Registry) Get(id string) (*chatmod.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return m, nil
}

// Delete removes and closes a module.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	m, ok := r.modules[id]
	delete(r.modules, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return m.Close()
}

// List returns the modules ordered by id.
func (r *Registry) List() []*chatmod.Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*chatmod.Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Close releases every module.
func (r *Registry) Close() error {
	r.mu.Lock()
	mods := r.modules
	r.modules = make(map[string]*chatmod.Module)
	r.mu.Unlock()

	var errs []error
	for _, m := range mods {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
