package api

import (
	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/conversation"
)

// CreateModuleRequest configures a new chat module. Unset fields keep the
// server defaults.
type CreateModuleRequest struct {
	ID           string   `json:"id,omitempty"`
	Device       string   `json:"device,omitempty"`
	Runtime      string   `json:"runtime,omitempty"`
	ConvTemplate string   `json:"conv_template,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	TopP         *float32 `json:"top_p,omitempty"`
	MaxGenLen    *int     `json:"max_gen_len,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
	StopStr      *string  `json:"stop_str,omitempty"`
}

type ModuleInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Device  string `json:"device"`
	Runtime string `json:"runtime"`
	State   string `json:"state"`
}

type ModuleList struct {
	Object string       `json:"object"`
	Data   []ModuleInfo `json:"data"`
}

type DeletedModule struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// CallRequest carries the positional arguments of a callable-table entry.
type CallRequest struct {
	Args []any `json:"args"`
}

type CallResponse struct {
	Function string    `json:"function"`
	Result   any       `json:"result"`
	Error    *APIError `json:"error,omitempty"`
}

type ChatRequest struct {
	Input  string `json:"input"`
	Stream *bool  `json:"stream,omitempty"`
}

type ChatResponse struct {
	ID           string            `json:"id"`
	Message      string            `json:"message"`
	FinishReason chat.FinishReason `json:"finish_reason"`
	Stats        chat.Stats        `json:"stats"`
}

type DeltaRequest struct {
	Curr string `json:"curr"`
	New  string `json:"new"`
}

type DeltaResponse struct {
	Delta   string `json:"delta"`
	Prefix  int    `json:"prefix"`
	Retract int    `json:"retract"`
	Append  string `json:"append"`
}

type TranscriptResponse struct {
	ID    string              `json:"id"`
	Turns []conversation.Turn `json:"turns"`
}
