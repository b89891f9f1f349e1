package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the llmchat configuration file
// (~/.config/llmchat/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	ModelDir string `yaml:"model_dir"`
	Device   string `yaml:"device"`
	Runtime  string `yaml:"runtime"`

	ConvTemplate string   `yaml:"conv_template"`
	Temperature  *float64 `yaml:"temperature"`
	TopP         *float64 `yaml:"top_p"`
	MaxGenLen    *int64   `yaml:"max_gen_len"`
	Seed         *int64   `yaml:"seed"`
	Hidden       *int64   `yaml:"hidden"`

	Store   string `yaml:"store"`
	NoStore *bool  `yaml:"no_store"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	ServerAddress string `yaml:"server_address"`
	MaxModules    *int64 `yaml:"max_modules"`
}

func configPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "llmchat", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}
	}
	return cfg
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	if cfg.LogFile != "" && !c.IsSet("log-file") {
		logFile = cfg.LogFile
	}
}

// applyModuleConfig applies config file defaults to module flags that
// were not set on the command line.
func applyModuleConfig(c *cli.Command, cfg Config, f *moduleFlags) {
	if cfg.Device != "" && !c.IsSet("device") {
		f.device = cfg.Device
	}
	if cfg.Runtime != "" && !c.IsSet("runtime") {
		f.runtime = cfg.Runtime
	}
	if cfg.ModelDir != "" && !c.IsSet("model-dir") {
		f.modelDir = cfg.ModelDir
	}
	if cfg.ConvTemplate != "" && !c.IsSet("conv-template") {
		f.template = cfg.ConvTemplate
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		f.temperature = *cfg.Temperature
		f.set["temperature"] = true
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		f.topP = *cfg.TopP
		f.set["top-p"] = true
	}
	if cfg.MaxGenLen != nil && !c.IsSet("max-gen-len") {
		f.maxGenLen = *cfg.MaxGenLen
		f.set["max-gen-len"] = true
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		f.seed = *cfg.Seed
		f.set["seed"] = true
	}
	if cfg.Hidden != nil && !c.IsSet("hidden") {
		f.hidden = *cfg.Hidden
	}
	if cfg.Store != "" && !c.IsSet("store") {
		f.storePath = cfg.Store
	}
	if cfg.NoStore != nil && !c.IsSet("no-store") {
		f.noStore = *cfg.NoStore
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxModules *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxModules != nil && !c.IsSet("max-modules") {
		*maxModules = *cfg.MaxModules
	}
}
