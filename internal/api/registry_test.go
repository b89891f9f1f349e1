package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samcharles93/llmchat/internal/chatmod"
)

func slowFactory(delay time.Duration) ModuleFactory {
	return func(ctx context.Context, dev string, opts chatmod.Options) (*chatmod.Module, error) {
		time.Sleep(delay)
		return chatmod.CreateChatModule(ctx, dev, opts)
	}
}

func TestRegistryLimitHoldsUnderConcurrentCreates(t *testing.T) {
	t.Parallel()

	const limit = 2
	reg := NewRegistry(RegistryConfig{
		Device:     "cpu",
		Base:       testBase(t, "x"),
		MaxModules: limit,
		Factory:    slowFactory(20 * time.Millisecond),
	})
	t.Cleanup(func() { _ = reg.Close() })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Create(context.Background(), CreateModuleRequest{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case !errors.Is(err, ErrTooManyModules):
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := len(reg.List()); n > limit || n != created {
		t.Fatalf("registry holds %d modules, %d creates succeeded, limit %d", n, created, limit)
	}
	if created != limit {
		t.Fatalf("created %d modules, want %d", created, limit)
	}
}

func TestRegistryFailedCreateReleasesSlot(t *testing.T) {
	t.Parallel()

	fail := true
	reg := NewRegistry(RegistryConfig{
		Device:     "cpu",
		Base:       testBase(t, "x"),
		MaxModules: 1,
		Factory: func(ctx context.Context, dev string, opts chatmod.Options) (*chatmod.Module, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return chatmod.CreateChatModule(ctx, dev, opts)
		},
	})
	t.Cleanup(func() { _ = reg.Close() })

	if _, err := reg.Create(context.Background(), CreateModuleRequest{}); err == nil {
		t.Fatalf("expected factory error")
	}
	fail = false
	if _, err := reg.Create(context.Background(), CreateModuleRequest{}); err != nil {
		t.Fatalf("create after failure: %v", err)
	}
	if _, err := reg.Create(context.Background(), CreateModuleRequest{}); !errors.Is(err, ErrTooManyModules) {
		t.Fatalf("expected capacity error, got %v", err)
	}
}
