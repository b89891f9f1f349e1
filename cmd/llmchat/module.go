package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/chatmod"
	"github.com/samcharles93/llmchat/internal/logger"
	"github.com/samcharles93/llmchat/internal/store"
)

// chatConfig resolves the chat config: the file from --chat-config or the
// model directory, then flag overrides.
func (f *moduleFlags) chatConfig(c *cli.Command) (chat.Config, error) {
	cfg := chat.DefaultConfig()
	if path := resolveChatConfig(f.chatConfig, f.modelDir); path != "" {
		loaded, err := chat.LoadConfig(path)
		if err != nil {
			return chat.Config{}, err
		}
		cfg = loaded
	}
	if f.template != "" {
		cfg.ConvTemplate = f.template
	}
	if f.isSet(c, "temperature") {
		cfg.Temperature = float32(f.temperature)
	}
	if f.isSet(c, "top-p") {
		cfg.TopP = float32(f.topP)
	}
	if f.isSet(c, "max-gen-len") {
		cfg.MaxGenLen = int(f.maxGenLen)
	}
	if f.isSet(c, "seed") {
		cfg.Seed = f.seed
	}
	return cfg, cfg.Validate()
}

// moduleOptions builds the options shared by every module the command
// creates. The returned closer releases the transcript store.
func (f *moduleFlags) moduleOptions(ctx context.Context, c *cli.Command) (chatmod.Options, io.Closer, error) {
	cfg, err := f.chatConfig(c)
	if err != nil {
		return chatmod.Options{}, nil, err
	}
	opts := chatmod.Options{
		Runtime:     f.runtime,
		Config:      cfg,
		ModelDir:    f.modelDir,
		Hidden:      int(f.hidden),
		MemoryLimit: f.memoryLimit,
		Logger:      logger.FromContext(ctx),
	}
	if f.noStore || f.storePath == "" {
		return opts, nopCloser{}, nil
	}
	st, err := store.Open(f.storePath)
	if err != nil {
		return chatmod.Options{}, nil, fmt.Errorf("open transcript store: %w", err)
	}
	opts.Transcript = st
	return opts, st, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
