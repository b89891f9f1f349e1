package main

import (
	"os"
	"path/filepath"

	"golang.org/x/term"
)

const (
	envConfigPath = "LLMCHAT_CONFIG"
	envStorePath  = "LLMCHAT_STORE"
)

const chatConfigName = "mlc-chat-config.json"

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

func defaultStorePath() string {
	if p := os.Getenv(envStorePath); p != "" {
		return p
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "llmchat", "transcripts.db")
}

// resolveChatConfig returns the chat config path to load, or "" to use
// the built-in defaults.
func resolveChatConfig(override, modelDir string) string {
	if override != "" {
		return filepath.Clean(override)
	}
	if modelDir == "" {
		return ""
	}
	p := filepath.Join(modelDir, chatConfigName)
	if fileExists(p) {
		return p
	}
	return ""
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
