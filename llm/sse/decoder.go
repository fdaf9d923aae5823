package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lgc202/openai-kit/llm"
)

var delimiters = [][]byte{[]byte("\n\n"), []byte("\r\n\r\n")}

// Decoder is the stream state machine. The zero value is not usable; call NewDecoder.
type Decoder struct {
	prefix    string
	endMarker string
	transient map[string]struct{}
	maxBuffer int
	delta     DeltaFunc

	buf   []byte
	text  strings.Builder
	state State
	last  Frame

	frames int
	deltas int
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		prefix:    DefaultDataPrefix,
		endMarker: DefaultEndMarker,
		transient: make(map[string]struct{}),
		delta:     ChatDelta,
	}
	WithTransientMarkers(DefaultTransientMarkers()...)(d)
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Feed appends a chunk to the undecoded buffer. Input after a terminal state is dropped.
func (d *Decoder) Feed(chunk []byte) {
	if d.state.Terminal() {
		return
	}
	d.buf = append(d.buf, chunk...)
}

// Next returns the next complete frame. It returns false when more input is needed or
// the decoder is terminal. A KindEnd frame moves to StateDone; KindError and KindMalformed
// move to StateFailed. Bytes after a terminal frame are never decoded.
func (d *Decoder) Next() (Frame, bool) {
	for {
		if d.state.Terminal() {
			return Frame{}, false
		}

		idx, width := nextDelimiter(d.buf)
		if idx < 0 {
			if d.maxBuffer > 0 && len(d.buf) > d.maxBuffer {
				return d.fail(Frame{
					Kind: KindMalformed,
					Raw:  string(d.buf),
					Err: &llm.Error{
						Kind:       llm.ErrKindStreamOverflow,
						HTTPStatus: llm.StreamFailureStatus,
						Message:    fmt.Sprintf("no frame delimiter within %d bytes", d.maxBuffer),
					},
				}), true
			}
			d.state = StateAccumulating
			return Frame{}, false
		}

		raw := string(d.buf[:idx])
		d.buf = d.buf[idx+width:]
		if strings.TrimSpace(raw) == "" {
			continue
		}

		d.state = StateEmitting
		d.frames++
		f := d.classify(raw)
		switch f.Kind {
		case KindData:
			d.deltas++
			d.text.WriteString(f.Delta)
			d.last = f
			return f, true
		case KindEnd:
			d.state = StateDone
			d.last = f
			d.buf = nil
			return f, true
		default:
			return d.fail(f), true
		}
	}
}

// Abort ends decoding because the peer closed the connection. It is a normal end:
// the decoder moves to StateDone unless it already reached a terminal state.
func (d *Decoder) Abort() {
	if d.state.Terminal() {
		return
	}
	d.state = StateDone
	d.last = Frame{Kind: KindEnd}
	d.buf = nil
}

// Finish is called at end of input. A trailing partial frame without delimiter is discarded.
func (d *Decoder) Finish() { d.Abort() }

func (d *Decoder) State() State { return d.state }

// Text returns the text accumulated so far.
func (d *Decoder) Text() string { return d.text.String() }

// Err returns the failure once the decoder is in StateFailed.
func (d *Decoder) Err() *llm.Error {
	if d.state != StateFailed {
		return nil
	}
	return d.last.Err
}

// Result reports the accumulated text and the raw terminal frame.
func (d *Decoder) Result() Result {
	r := Result{Text: d.text.String(), Frames: d.frames, Deltas: d.deltas}
	if d.state.Terminal() {
		r.Raw = d.last.Raw
	}
	return r
}

func (d *Decoder) fail(f Frame) Frame {
	d.state = StateFailed
	d.last = f
	d.buf = nil
	return f
}

func (d *Decoder) classify(raw string) Frame {
	if raw == d.endMarker {
		return Frame{Kind: KindEnd, Raw: raw}
	}
	if _, ok := d.transient[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return Frame{Kind: KindError, Raw: raw, Err: protocolError(raw, "")}
	}
	if !strings.HasPrefix(raw, d.prefix) {
		return Frame{Kind: KindMalformed, Raw: raw, Err: protocolError(raw, "")}
	}

	payload := []byte(raw[len(d.prefix):])
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return Frame{Kind: KindMalformed, Raw: raw, Err: decodeError(raw, err.Error(), err)}
	}
	if len(obj) == 0 {
		return Frame{Kind: KindMalformed, Raw: raw, Err: decodeError(raw, "empty payload", nil)}
	}
	if e, ok := obj["error"]; ok && !isNull(e) {
		return Frame{Kind: KindError, Raw: raw, Err: inbandError(raw, e)}
	}

	delta, err := d.delta(obj["choices"])
	if err != nil {
		return Frame{Kind: KindMalformed, Raw: raw, Err: decodeError(raw, err.Error(), err)}
	}
	return Frame{Kind: KindData, Raw: raw, Delta: delta}
}

func nextDelimiter(buf []byte) (idx, width int) {
	idx = -1
	for _, delim := range delimiters {
		if i := bytes.Index(buf, delim); i >= 0 && (idx < 0 || i < idx) {
			idx, width = i, len(delim)
		}
	}
	return idx, width
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func protocolError(raw, code string) *llm.Error {
	return &llm.Error{
		Kind:       llm.ErrKindStreamProtocol,
		HTTPStatus: llm.StreamFailureStatus,
		Code:       code,
		Message:    raw,
		Raw:        []byte(raw),
	}
}

func decodeError(raw, reason string, cause error) *llm.Error {
	return &llm.Error{
		Kind:       llm.ErrKindStreamDecode,
		HTTPStatus: llm.StreamFailureStatus,
		Message:    "invalid data frame: " + reason,
		Raw:        []byte(raw),
		Cause:      cause,
	}
}

type inbandPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func inbandError(raw string, payload json.RawMessage) *llm.Error {
	var p inbandPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Message == "" {
		return protocolError(raw, "")
	}
	code := p.Type
	if code == "" && p.Code != nil {
		code = fmt.Sprint(p.Code)
	}
	e := protocolError(raw, code)
	e.Message = p.Message
	return e
}
