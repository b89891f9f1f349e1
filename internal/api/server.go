package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/llmchat/internal/chat"
	"github.com/samcharles93/llmchat/internal/chatmod"
	"github.com/samcharles93/llmchat/internal/conversation"
	"github.com/samcharles93/llmchat/internal/logger"
)

// TranscriptReader reads persisted turns. *store.Store satisfies it.
type TranscriptReader interface {
	Turns(ctx context.Context, moduleID string) ([]conversation.Turn, error)
}

type Server struct {
	modules     *Registry
	transcripts TranscriptReader
	log         logger.Logger
}

func NewServer(modules *Registry, transcripts TranscriptReader, log logger.Logger) *Server {
	if modules == nil {
		modules = NewRegistry(RegistryConfig{Device: "cpu"})
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		modules:     modules,
		transcripts: transcripts,
		log:         log,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/functions", s.handleListFunctions)
	e.POST("/v1/delta", s.handleDelta)

	e.POST("/v1/modules", s.handleCreateModule)
	e.GET("/v1/modules", s.handleListModules)
	e.GET("/v1/modules/:id", s.handleGetModule)
	e.DELETE("/v1/modules/:id", s.handleDeleteModule)
	e.POST("/v1/modules/:id/call/:fn", s.handleCall)
	e.POST("/v1/modules/:id/chat", s.handleChat)
	e.GET("/v1/modules/:id/transcript", s.handleTranscript)
}

func (s *Server) handleListFunctions(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   chatmod.FunctionNames(),
	})
}

func (s *Server) handleDelta(c *echo.Context) error {
	req, err := decodeJSON[DeltaRequest](c.Request().Body)
	if err != nil {
		return writeError(c, err)
	}
	d := chat.ComputeDelta(req.Curr, req.New)
	return c.JSON(http.StatusOK, DeltaResponse{
		Delta:   d.String(),
		Prefix:  d.Prefix,
		Retract: d.Retracted(),
		Append:  d.Append,
	})
}

func (s *Server) handleCreateModule(c *echo.Context) error {
	req, err := decodeJSON[CreateModuleRequest](c.Request().Body)
	if err != nil {
		return writeError(c, err)
	}
	req.ID = strings.TrimSpace(req.ID)
	m, err := s.modules.Create(c.Request().Context(), req)
	if err != nil {
		s.log.Warn("create module failed", "device", req.Device, "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, moduleInfo(m))
}

func (s *Server) handleListModules(c *echo.Context) error {
	mods := s.modules.List()
	out := ModuleList{Object: "list", Data: make([]ModuleInfo, 0, len(mods))}
	for _, m := range mods {
		out.Data = append(out.Data, moduleInfo(m))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetModule(c *echo.Context) error {
	m, err := s.modules.Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, moduleInfo(m))
}

func (s *Server) handleDeleteModule(c *echo.Context) error {
	id := c.Param("id")
	if err := s.modules.Delete(id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DeletedModule{ID: id, Object: "chat.module.deleted", Deleted: true})
}

func (s *Server) handleCall(c *echo.Context) error {
	m, err := s.modules.Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	fn := c.Param("fn")
	var req CallRequest
	if c.Request().ContentLength != 0 {
		if req, err = decodeJSON[CallRequest](c.Request().Body); err != nil {
			return writeError(c, err)
		}
	}
	res, err := m.Call(c.Request().Context(), fn, normalizeArgs(req.Args)...)
	if fn == chatmod.OpStopped.String() && res != nil {
		// stopped reports the fault next to the flag instead of failing.
		out := CallResponse{Function: fn, Result: res}
		if err != nil {
			_, typ := classify(err)
			out.Error = &APIError{Message: err.Error(), Type: typ}
		}
		return c.JSON(http.StatusOK, out)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, CallResponse{Function: fn, Result: res})
}

// handleChat runs one full turn: process_input, then decode_next until the
// turn stops. A client that goes away abandons the turn.
func (s *Server) handleChat(c *echo.Context) error {
	m, err := s.modules.Get(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	req, err := decodeJSON[ChatRequest](c.Request().Body)
	if err != nil {
		return writeError(c, err)
	}
	if err := m.ProcessInput(req.Input); err != nil {
		return writeError(c, err)
	}

	var writer *SSEStreamWriter
	if req.Stream == nil || *req.Stream {
		w, err := NewSSEStreamWriter(c)
		if err != nil {
			m.ResetTurn()
			return writeError(c, newInvalidRequest(err.Error()))
		}
		writer = w
	}

	ctx := c.Request().Context()
	sess := m.Session()
	for {
		d, err := m.DecodeNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.log.Info("chat turn abandoned", "module", m.ID())
				m.ResetTurn()
				if writer != nil {
					return nil
				}
				return writeError(c, newInvalidRequest("request cancelled"))
			}
			if writer != nil {
				if werr := writer.Failed(err); werr != nil {
					s.log.Warn("write stream error event", "error", werr)
				}
				return nil
			}
			return writeError(c, err)
		}
		if writer != nil {
			if err := writer.Delta(d); err != nil {
				s.log.Info("stream client gone", "module", m.ID(), "error", err)
				m.ResetTurn()
				return nil
			}
		}
		if done, _ := m.Stopped(); done {
			break
		}
	}

	msg, reason, stats := m.Message(), sess.FinishReason(), sess.Stats()
	if writer != nil {
		return writer.Done(msg, reason, stats)
	}
	return c.JSON(http.StatusOK, ChatResponse{
		ID:           m.ID(),
		Message:      msg,
		FinishReason: reason,
		Stats:        stats,
	})
}

// handleTranscript returns the stored turns, or the live history when the
// server runs without a store.
func (s *Server) handleTranscript(c *echo.Context) error {
	id := c.Param("id")
	if s.transcripts == nil {
		m, err := s.modules.Get(id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, TranscriptResponse{ID: id, Turns: m.History()})
	}
	turns, err := s.transcripts.Turns(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	return c.JSON(http.StatusOK, TranscriptResponse{ID: id, Turns: turns})
}

func moduleInfo(m *chatmod.Module) ModuleInfo {
	return ModuleInfo{
		ID:      m.ID(),
		Object:  "chat.module",
		Device:  m.Device().String(),
		Runtime: m.Runtime(),
		State:   m.Session().State().String(),
	}
}
