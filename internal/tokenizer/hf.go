package tokenizer

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

type hfTokenizerJSON struct {
	Model struct {
		Type     string         `json:"type"`
		Vocab    map[string]int `json:"vocab"`
		Merges   []any          `json:"merges"`
		UnkToken string         `json:"unk_token"`
	} `json:"model"`
	PreTokenizer struct {
		Type          string `json:"type"`
		Pretokenizers []struct {
			Type    string `json:"type"`
			Pattern struct {
				Regex string `json:"Regex"`
			} `json:"pattern"`
		} `json:"pretokenizers"`
	} `json:"pre_tokenizer"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

type hfTokenizerConfig struct {
	AddBOS bool `json:"add_bos_token"`
	BOS    any  `json:"bos_token"`
	EOS    any  `json:"eos_token"`
}

// LoadHF reads a HuggingFace tokenizer.json and an optional
// tokenizer_config.json.
func LoadHF(tokJSON, tokConfig string) (*BPE, error) {
	data, err := os.ReadFile(tokJSON)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer.json: %w", err)
	}
	var cfg []byte
	if tokConfig != "" {
		if cfg, err = os.ReadFile(tokConfig); err != nil {
			return nil, fmt.Errorf("load tokenizer_config.json: %w", err)
		}
	}
	return LoadHFBytes(data, cfg)
}

func LoadHFBytes(tokJSON, tokConfig []byte) (*BPE, error) {
	var tj hfTokenizerJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if strings.ToUpper(tj.Model.Type) != "BPE" {
		return nil, fmt.Errorf("unsupported tokenizer model: %s", tj.Model.Type)
	}

	maxID := -1
	for _, id := range tj.Model.Vocab {
		maxID = max(maxID, id)
	}
	for _, at := range tj.AddedTokens {
		maxID = max(maxID, at.ID)
	}
	vocab := make([]string, maxID+1)
	for tok, id := range tj.Model.Vocab {
		vocab[id] = tok
	}
	var specials []string
	for _, at := range tj.AddedTokens {
		vocab[at.ID] = at.Content
		if at.Special {
			specials = append(specials, at.Content)
		}
	}

	merges := make([]string, 0, len(tj.Model.Merges))
	for _, raw := range tj.Model.Merges {
		switch v := raw.(type) {
		case string:
			merges = append(merges, v)
		case []any:
			if len(v) == 2 {
				a, aok := v[0].(string)
				b, bok := v[1].(string)
				if aok && bok {
					merges = append(merges, a+" "+b)
				}
			}
		}
	}

	pattern := ""
	if tj.PreTokenizer.Type == "Sequence" {
		for _, p := range tj.PreTokenizer.Pretokenizers {
			if p.Type == "Split" && p.Pattern.Regex != "" {
				pattern = p.Pattern.Regex
				break
			}
		}
	}
	// Go's regexp has no lookahead; fall back to the GPT-2 pattern.
	if strings.Contains(pattern, "(?!") || strings.Contains(pattern, "(?=") {
		pattern = ""
	}

	var tc hfTokenizerConfig
	if len(tokConfig) > 0 {
		if err := json.Unmarshal(tokConfig, &tc); err != nil {
			return nil, fmt.Errorf("parse tokenizer_config.json: %w", err)
		}
	}

	return NewBPE(Config{
		Vocab:    vocab,
		Merges:   merges,
		Specials: specials,
		Pattern:  pattern,
		AddBOS:   tc.AddBOS,
		BOS:      tokenName(tc.BOS),
		EOS:      tokenName(tc.EOS),
		UNK:      tj.Model.UnkToken,
	})
}

// tokenName accepts both the plain string and the AddedToken object form.
func tokenName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["content"].(string); ok {
			return s
		}
	}
	return ""
}
