package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current state. Callers recover by fixing the call order.
	ErrInvalidState = errors.New("invalid session state")

	ErrNotGenerating = fmt.Errorf("%w: not generating", ErrInvalidState)
	ErrStepInFlight  = fmt.Errorf("%w: step already in flight", ErrInvalidState)
	ErrClosed        = fmt.Errorf("%w: session closed", ErrInvalidState)

	ErrGenerationFault = errors.New("generation fault")

	// ErrRenderInconsistency reports a delta that does not reproduce the
	// rendered text. It is a defect, never a runtime condition.
	ErrRenderInconsistency = errors.New("render inconsistency")
)

// GenerationFault is recorded when the runtime, tokenizer or sampler fails
// mid-turn. The session stops and reports the fault from Step and Stopped.
type GenerationFault struct {
	Phase string // "prefill" or "decode"
	Step  int
	Err   error
}

func (f *GenerationFault) Error() string {
	return fmt.Sprintf("generation fault during %s (step %d): %v", f.Phase, f.Step, f.Err)
}

func (f *GenerationFault) Unwrap() error { return f.Err }

func (f *GenerationFault) Is(target error) bool { return target == ErrGenerationFault }
