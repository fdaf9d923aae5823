package sse

// Handler receives decoded output. All fields are optional.
type Handler struct {
	// OnDelta receives every content delta in arrival order. When set, its return value is
	// what Forward receives instead of the raw delta. The accumulated text always keeps
	// the raw delta.
	OnDelta func(delta string) string

	// Forward is the downstream subscriber (see llm/relay).
	Forward func(text string)

	// OnDone receives the raw terminal frame when the end marker arrives.
	OnDone func(raw string)
}

func (h Handler) data(delta string) {
	out := delta
	if h.OnDelta != nil {
		out = h.OnDelta(delta)
	}
	if h.Forward != nil {
		h.Forward(out)
	}
}

// Drain pulls every complete frame currently buffered and drives h. It reports whether the
// stream reached StateDone, and the failure if it reached StateFailed.
func (d *Decoder) Drain(h Handler) (done bool, err error) {
	for {
		f, ok := d.Next()
		if !ok {
			return d.state == StateDone, nil
		}
		switch f.Kind {
		case KindData:
			h.data(f.Delta)
		case KindEnd:
			if h.OnDone != nil {
				h.OnDone(f.Raw)
			}
			return true, nil
		default:
			return false, f.Err
		}
	}
}
