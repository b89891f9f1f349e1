package chatmod

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownFunction = errors.New("unknown function")
	ErrBadArguments    = errors.New("bad arguments")
)

// Op is an operation of the callable table.
type Op int

const (
	OpReset Op = iota
	OpResetTurn
	OpProcessInput
	OpDecodeNext
	OpStopped
	OpGetMessage
	OpGetDeltaMessage
	OpRuntimeStatsText
	OpResetRuntimeStats
	OpGetHistory
	numOps
)

var opNames = [numOps]string{
	OpReset:             "reset",
	OpResetTurn:         "reset_turn",
	OpProcessInput:      "process_input",
	OpDecodeNext:        "decode_next",
	OpStopped:           "stopped",
	OpGetMessage:        "get_message",
	OpGetDeltaMessage:   "get_delta_message",
	OpRuntimeStatsText:  "runtime_stats_text",
	OpResetRuntimeStats: "reset_runtime_stats",
	OpGetHistory:        "get_history",
}

func (o Op) String() string {
	if o < 0 || o >= numOps {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// ParseOp resolves a function name.
func ParseOp(name string) (Op, error) {
	name = strings.TrimSpace(name)
	for i, n := range opNames {
		if n == name {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownFunction, name)
}

// FunctionNames lists the callable table in declaration order.
func FunctionNames() []string {
	return append([]string(nil), opNames[:]...)
}

func wantArgs(op Op, args []any, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrBadArguments, op, n, len(args))
	}
	return nil
}

func stringArg(op Op, args []any, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s argument %d must be a string, got %T", ErrBadArguments, op, i, args[i])
	}
	return s, nil
}
