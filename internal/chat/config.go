package chat

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Config mirrors mlc-chat-config.json. Fields absent from the file keep
// the values of DefaultConfig.
type Config struct {
	ModelLib          string   `json:"model_lib"`
	LocalID           string   `json:"local_id"`
	ConvTemplate      string   `json:"conv_template"`
	Temperature       float32  `json:"temperature"`
	RepetitionPenalty float32  `json:"repetition_penalty"`
	TopP              float32  `json:"top_p"`
	MeanGenLen        int      `json:"mean_gen_len"`
	MaxGenLen         int      `json:"max_gen_len"`
	MaxWindowSize     int      `json:"max_window_size"`
	NumShards         int      `json:"num_shards"`
	ShiftFillFactor   float64  `json:"shift_fill_factor"`
	TokenizerFiles    []string `json:"tokenizer_files"`
	ModelCategory     string   `json:"model_category"`
	ModelName         string   `json:"model_name"`
	VocabSize         int      `json:"vocab_size"`

	StopStr string `json:"stop_str,omitempty"`
	Seed    int64  `json:"seed,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		ConvTemplate:      "chatml",
		Temperature:       0.7,
		RepetitionPenalty: 1.0,
		TopP:              0.95,
		MeanGenLen:        128,
		MaxGenLen:         512,
		MaxWindowSize:     768,
		NumShards:         1,
		ShiftFillFactor:   0.3,
	}
}

// LoadConfig reads an mlc-chat-config.json file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read chat config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse chat config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Temperature < 0 {
		errs = append(errs, fmt.Errorf("temperature must be >= 0, got %g", c.Temperature))
	}
	if c.TopP <= 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p must be in (0, 1], got %g", c.TopP))
	}
	if c.RepetitionPenalty <= 0 {
		errs = append(errs, fmt.Errorf("repetition_penalty must be > 0, got %g", c.RepetitionPenalty))
	}
	if c.MaxGenLen <= 0 {
		errs = append(errs, fmt.Errorf("max_gen_len must be > 0, got %d", c.MaxGenLen))
	}
	if c.MaxWindowSize <= 0 {
		errs = append(errs, fmt.Errorf("max_window_size must be > 0, got %d", c.MaxWindowSize))
	}
	if c.MeanGenLen < 0 {
		errs = append(errs, fmt.Errorf("mean_gen_len must be >= 0, got %d", c.MeanGenLen))
	}
	if c.ShiftFillFactor <= 0 || c.ShiftFillFactor > 1 {
		errs = append(errs, fmt.Errorf("shift_fill_factor must be in (0, 1], got %g", c.ShiftFillFactor))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid chat config: %w", err)
	}
	return nil
}
