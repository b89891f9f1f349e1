package conversation

import (
	"fmt"
	"sort"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Template renders a history into the prompt format a model was tuned on.
//
// The prompt is System followed by Seps[0] (when System is set), then for
// message i: role + RoleMsgSep + text + Seps[i%len(Seps)], and finally the
// assistant role + RoleEmptySep as the generation prompt.
type Template struct {
	Name         string
	System       string
	Roles        [2]string // user, assistant
	Seps         []string
	RoleMsgSep   string
	RoleEmptySep string

	// StopStr ends a turn when it appears in generated text.
	StopStr string
	// StopTokens are vocabulary entries that end a turn.
	StopTokens []string
}

// Prompt renders turns and appends the generation prompt for the
// assistant. turns must alternate user/assistant starting with user.
func (t Template) Prompt(turns []Turn) (string, error) {
	var b strings.Builder
	if t.System != "" {
		b.WriteString(t.System)
		b.WriteString(t.sep(0))
	}
	for i, turn := range turns {
		role, err := t.role(turn.Role)
		if err != nil {
			return "", fmt.Errorf("turn %d: %w", i, err)
		}
		b.WriteString(role)
		b.WriteString(t.RoleMsgSep)
		b.WriteString(turn.Text)
		b.WriteString(t.sep(i))
	}
	b.WriteString(t.Roles[1])
	b.WriteString(t.RoleEmptySep)
	return b.String(), nil
}

func (t Template) role(name string) (string, error) {
	switch name {
	case RoleUser:
		return t.Roles[0], nil
	case RoleAssistant:
		return t.Roles[1], nil
	default:
		return "", fmt.Errorf("unknown role %q", name)
	}
}

func (t Template) sep(i int) string {
	if len(t.Seps) == 0 {
		return ""
	}
	return t.Seps[i%len(t.Seps)]
}

var builtin = map[string]Template{
	"chatml": {
		Name:         "chatml",
		System:       "<|im_start|>system\nYou are a helpful assistant.",
		Roles:        [2]string{"<|im_start|>user", "<|im_start|>assistant"},
		Seps:         []string{"<|im_end|>\n"},
		RoleMsgSep:   "\n",
		RoleEmptySep: "\n",
		StopStr:      "<|im_end|>",
		StopTokens:   []string{"<|im_end|>", "<|endoftext|>"},
	},
	"llama-2": {
		Name:         "llama-2",
		Roles:        [2]string{"[INST]", "[/INST]"},
		Seps:         []string{" ", " </s><s>"},
		RoleMsgSep:   " ",
		RoleEmptySep: "",
		StopStr:      "[INST]",
		StopTokens:   []string{"</s>"},
	},
	"vicuna_v1.1": {
		Name: "vicuna_v1.1",
		System: "A chat between a curious user and an artificial intelligence assistant. " +
			"The assistant gives helpful, detailed, and polite answers to the user's questions.",
		Roles:        [2]string{"USER", "ASSISTANT"},
		Seps:         []string{" ", "</s>"},
		RoleMsgSep:   ": ",
		RoleEmptySep: ":",
		StopTokens:   []string{"</s>"},
	},
	"redpajama_chat": {
		Name:         "redpajama_chat",
		Roles:        [2]string{"<human>", "<bot>"},
		Seps:         []string{"\n"},
		RoleMsgSep:   ": ",
		RoleEmptySep: ":",
		StopStr:      "<human>",
		StopTokens:   []string{"<|endoftext|>"},
	},
	"LM": {
		Name:       "LM",
		StopTokens: []string{"</s>"},
	},
}

// Lookup returns the named built-in template.
func Lookup(name string) (Template, bool) {
	t, ok := builtin[strings.TrimSpace(name)]
	if !ok {
		return Template{}, false
	}
	t.Seps = append([]string(nil), t.Seps...)
	t.StopTokens = append([]string(nil), t.StopTokens...)
	return t, true
}

func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
