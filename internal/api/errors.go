package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/chatmod"
	"github.com/samcharles93/llmchat/internal/device"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrModuleNotFound = errors.New("module not found")
	ErrTooManyModules = errors.New("module limit reached")
	ErrModuleExists   = errors.New("module id already in use")
)

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string { return e.msg }

func (e invalidRequestError) Unwrap() error { return ErrInvalidRequest }

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// classify maps an error onto an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, chatmod.ErrBadArguments):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, ErrModuleNotFound), errors.Is(err, chatmod.ErrUnknownFunction):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, ErrModuleExists), errors.Is(err, chat.ErrInvalidState):
		return http.StatusConflict, "invalid_state_error"
	case errors.Is(err, ErrTooManyModules), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "capacity_error"
	case errors.Is(err, device.ErrBind):
		return http.StatusUnprocessableEntity, "device_bind_error"
	case errors.Is(err, chat.ErrGenerationFault):
		return http.StatusInternalServerError, "generation_fault"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
