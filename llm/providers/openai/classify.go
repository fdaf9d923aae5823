package openai

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/lgc202/openai-kit/llm"
)

// Classifier decides whether a response succeeded and normalizes the failures.
type Classifier struct {
	accepted []int

	// EmbeddedErrors makes an error envelope inside an accepted status a failure.
	// Off by default: the status alone decides.
	EmbeddedErrors bool
}

func NewClassifier(accepted []int) Classifier {
	return Classifier{accepted: slices.Clone(accepted)}
}

// Accepts reports whether status is in the success set.
func (c Classifier) Accepts(status int) bool {
	return slices.Contains(c.accepted, status)
}

// Classify returns body unchanged on success, or an *llm.Error of kind ErrKindHTTPStatus.
func (c Classifier) Classify(status int, body []byte) ([]byte, error) {
	if c.Accepts(status) {
		if c.EmbeddedErrors {
			if code, msg, ok := parseErrorEnvelope(body); ok {
				return nil, statusError(status, code, msg, body)
			}
		}
		return body, nil
	}

	code, msg, ok := parseErrorEnvelope(body)
	if !ok {
		code, msg = "", fmt.Sprintf("http status %d", status)
	}
	return nil, statusError(status, code, msg, body)
}

func statusError(status int, code, msg string, body []byte) *llm.Error {
	return &llm.Error{
		Kind:       llm.ErrKindHTTPStatus,
		HTTPStatus: status,
		Code:       code,
		Message:    msg,
		Raw:        append([]byte(nil), body...),
	}
}

// errorEnvelope covers both shapes:
//
//	{"error": {"type"|"code": ..., "message": ...}}
//	{"object": "error", "code": ..., "message": ...}
type errorEnvelope struct {
	Object  string      `json:"object"`
	Code    any         `json:"code"`
	Message string      `json:"message"`
	Error   *errorField `json:"error"`
}

type errorField struct {
	Type    string `json:"type"`
	Code    any    `json:"code"`
	Message string `json:"message"`
}

func parseErrorEnvelope(body []byte) (code, message string, ok bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", false
	}
	if env.Object == "error" {
		env.Error = &errorField{Type: stringify(env.Code), Message: env.Message}
	}
	if env.Error == nil {
		return "", "", false
	}

	code = env.Error.Type
	if code == "" {
		code = stringify(env.Error.Code)
	}
	message = env.Error.Message
	if code == "" && message == "" {
		return "", "", false
	}
	return code, message, true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
