package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmchat/internal/chatmod"
	"github.com/samcharles93/llmchat/internal/conversation"
	"github.com/samcharles93/llmchat/internal/runtime"
)

func templatesCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List conversation templates, runtimes and module functions",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println("templates:")
			for _, name := range conversation.Names() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("runtimes:")
			for _, name := range runtime.Names() {
				fmt.Printf("  %s\n", name)
			}
			fmt.Println("functions:")
			for _, name := range chatmod.FunctionNames() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}
