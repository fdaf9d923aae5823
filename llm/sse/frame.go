package sse

import "github.com/lgc202/openai-kit/llm"

// Kind classifies a decoded frame.
type Kind int

const (
	// KindData carries a content delta.
	KindData Kind = iota
	// KindEnd is the end marker (or peer close / EOF); decoding is Done.
	KindEnd
	// KindError is a transient marker or an in-band error payload; decoding Failed.
	KindError
	// KindMalformed is a frame without the data prefix, bad JSON or buffer overflow; decoding Failed.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindEnd:
		return "end"
	case KindError:
		return "error"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Frame is one decoded protocol unit.
type Frame struct {
	Kind Kind

	// Raw is the frame text without its delimiter.
	Raw string

	// Delta is the content delta of a KindData frame (possibly empty).
	Delta string

	// Err is set for KindError and KindMalformed.
	Err *llm.Error
}

// State is the decoder state.
type State int

const (
	StateAccumulating State = iota
	StateEmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further frames will be produced.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Result is what a finished stream produced.
type Result struct {
	// Text is the concatenation of every data frame's delta, in arrival order.
	Text string

	// Raw is the terminal frame. It is empty when the stream ended by EOF or peer close.
	Raw string

	Frames int
	Deltas int
}
