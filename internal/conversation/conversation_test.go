package conversation

import (
	"strings"
	"testing"
)

func TestChatMLPrompt(t *testing.T) {
	t.Parallel()

	tpl, ok := Lookup("chatml")
	if !ok {
		t.Fatalf("chatml not found")
	}
	out, err := tpl.Prompt([]Turn{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleAssistant, Text: "hi"},
		{Role: RoleUser, Text: "2+2="},
	})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	want := "<|im_start|>system\nYou are a helpful assistant.<|im_end|>\n" +
		"<|im_start|>user\nhello<|im_end|>\n" +
		"<|im_start|>assistant\nhi<|im_end|>\n" +
		"<|im_start|>user\n2+2=<|im_end|>\n" +
		"<|im_start|>assistant\n"
	if out != want {
		t.Fatalf("got %q\nwant %q", out, want)
	}
}

func TestAlternatingSeparators(t *testing.T) {
	t.Parallel()

	tpl, _ := Lookup("vicuna_v1.1")
	out, err := tpl.Prompt([]Turn{
		{Role: RoleUser, Text: "a"},
		{Role: RoleAssistant, Text: "b"},
	})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.HasSuffix(out, "USER: a ASSISTANT: b</s>ASSISTANT:") {
		t.Fatalf("unexpected prompt: %q", out)
	}
}

func TestRawTemplate(t *testing.T) {
	t.Parallel()

	tpl, _ := Lookup("LM")
	out, err := tpl.Prompt([]Turn{{Role: RoleUser, Text: "2+2="}})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if out != "2+2=" {
		t.Fatalf("got %q", out)
	}
}

func TestUnknownRole(t *testing.T) {
	t.Parallel()

	tpl, _ := Lookup("chatml")
	if _, err := tpl.Prompt([]Turn{{Role: "tool", Text: "x"}}); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	t.Parallel()

	a, _ := Lookup("chatml")
	a.StopTokens[0] = "mutated"
	b, _ := Lookup("chatml")
	if b.StopTokens[0] != "<|im_end|>" {
		t.Fatalf("lookup shares backing array with the registry")
	}
}
