package sse

import (
	"encoding/json"
	"strings"
)

const (
	DefaultDataPrefix = "data: "
	DefaultEndMarker  = "data: [DONE]"
)

// DefaultTransientMarkers are frames (compared trimmed and lower-cased) that some
// gateways emit instead of data when throttling.
func DefaultTransientMarkers() []string {
	return []string{"data: [continue]", "rate limit.."}
}

// DeltaFunc extracts the content delta from the raw "choices" member of a data frame.
// choices is nil when the member is absent.
type DeltaFunc func(choices json.RawMessage) (string, error)

// ChatDelta reads choices[0].delta.content of a chat completion chunk. Other members of
// the choice are not decoded, so vendor extensions of any shape pass through.
func ChatDelta(choices json.RawMessage) (string, error) {
	var c struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	}
	ok, err := firstChoice(choices, &c)
	if !ok || err != nil {
		return "", err
	}
	return c.Delta.Content, nil
}

// CompletionDelta reads choices[0].text of a legacy completion chunk.
func CompletionDelta(choices json.RawMessage) (string, error) {
	var c struct {
		Text string `json:"text"`
	}
	ok, err := firstChoice(choices, &c)
	if !ok || err != nil {
		return "", err
	}
	return c.Text, nil
}

func firstChoice(choices json.RawMessage, dst any) (bool, error) {
	if len(choices) == 0 {
		return false, nil
	}
	var cs []json.RawMessage
	if err := json.Unmarshal(choices, &cs); err != nil {
		return false, err
	}
	if len(cs) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(cs[0], dst)
}

type Option func(*Decoder)

func WithDataPrefix(prefix string) Option {
	return func(d *Decoder) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

func WithEndMarker(marker string) Option {
	return func(d *Decoder) {
		if marker != "" {
			d.endMarker = marker
		}
	}
}

// WithTransientMarkers adds to the transient marker set.
func WithTransientMarkers(markers ...string) Option {
	return func(d *Decoder) {
		for _, m := range markers {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				d.transient[m] = struct{}{}
			}
		}
	}
}

// WithMaxBuffer caps the bytes held while waiting for a delimiter. Zero means unbounded.
func WithMaxBuffer(n int) Option {
	return func(d *Decoder) { d.maxBuffer = n }
}

func WithDeltaFunc(fn DeltaFunc) Option {
	return func(d *Decoder) {
		if fn != nil {
			d.delta = fn
		}
	}
}
