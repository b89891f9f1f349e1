package api

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

func writeError(c *echo.Context, err error) error {
	status, typ := classify(err)
	return c.JSON(status, map[string]any{
		"error": APIError{Message: err.Error(), Type: typ},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, newInvalidRequest("decode request body: " + err.Error())
	}
	return out, nil
}

// normalizeArgs turns JSON numbers that hold integers into int so the
// callable table sees the same types an in-process caller would pass.
func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if f, ok := a.(float64); ok && f == float64(int64(f)) {
			out[i] = int(f)
			continue
		}
		out[i] = a
	}
	return out
}
