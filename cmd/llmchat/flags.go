package main

import "github.com/urfave/cli/v3"

var (
	logLevel  string
	logFormat string
	logFile   string
	debug     bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "write logs to a rotated file instead of stderr",
			Destination: &logFile,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// moduleFlags are the settings every command that creates a chat module
// accepts.
type moduleFlags struct {
	device      string
	runtime     string
	modelDir    string
	chatConfig  string
	template    string
	temperature float64
	topP        float64
	maxGenLen   int64
	seed        int64
	hidden      int64
	memoryLimit int64
	storePath   string
	noStore     bool

	// set records values supplied by the config file.
	set map[string]bool
}

func newModuleFlags() *moduleFlags {
	return &moduleFlags{set: make(map[string]bool)}
}

func (f *moduleFlags) isSet(c *cli.Command, name string) bool {
	return c.IsSet(name) || f.set[name]
}

func (f *moduleFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "device to bind (auto, cpu, cuda:N, metal:N)",
			Value:       "auto",
			Destination: &f.device,
		},
		&cli.StringFlag{
			Name:        "runtime",
			Usage:       "model runtime (toy, script)",
			Value:       "toy",
			Destination: &f.runtime,
		},
		&cli.StringFlag{
			Name:        "model-dir",
			Aliases:     []string{"m"},
			Usage:       "directory holding tokenizer.json and mlc-chat-config.json",
			Destination: &f.modelDir,
		},
		&cli.StringFlag{
			Name:        "chat-config",
			Usage:       "override path to mlc-chat-config.json",
			Destination: &f.chatConfig,
		},
		&cli.StringFlag{
			Name:        "conv-template",
			Aliases:     []string{"template"},
			Usage:       "conversation template name",
			Destination: &f.template,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature (0 = greedy)",
			Destination: &f.temperature,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "nucleus sampling threshold",
			Destination: &f.topP,
		},
		&cli.Int64Flag{
			Name:        "max-gen-len",
			Usage:       "maximum tokens generated per turn",
			Destination: &f.maxGenLen,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling and toy weight seed",
			Destination: &f.seed,
		},
		&cli.Int64Flag{
			Name:        "hidden",
			Usage:       "toy runtime hidden size",
			Value:       64,
			Destination: &f.hidden,
		},
		&cli.Int64Flag{
			Name:        "memory-limit",
			Usage:       "bytes available on the device (0 = unlimited)",
			Destination: &f.memoryLimit,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "sqlite transcript database",
			Value:       defaultStorePath(),
			Destination: &f.storePath,
		},
		&cli.BoolFlag{
			Name:        "no-store",
			Usage:       "do not persist transcripts",
			Destination: &f.noStore,
		},
	}
}
