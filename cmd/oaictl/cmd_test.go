package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lgc202/openai-kit/llm"
)

func TestDecodeStream(t *testing.T) {
	in := strings.NewReader(`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\r\n\r\n" +
		`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n\n" + "data: [DONE]\n\n")
	var out bytes.Buffer
	res, err := decodeStream(in, &out, &streamOptions{})
	if err != nil {
		t.Fatalf("decodeStream() err=%v", err)
	}
	if res.Text != "Hello" || out.String() != "Hello\n" {
		t.Fatalf("text=%q out=%q", res.Text, out.String())
	}
}

func TestDecodeStream_FramesAndFailure(t *testing.T) {
	in := strings.NewReader(`data: {"choices":[{"text":"x"}]}` + "\n\n" + "server busy\n\n")
	var out bytes.Buffer
	_, err := decodeStream(in, &out, &streamOptions{completion: true, frames: true, markers: []string{"server busy"}})
	if !llm.IsKind(err, llm.ErrKindStreamProtocol) {
		t.Fatalf("err=%v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "data") || !strings.HasPrefix(lines[1], "error") {
		t.Fatalf("out=%q", out.String())
	}
}

func TestParseMessage(t *testing.T) {
	tests := map[string][2]string{
		"hello":                 {"user", "hello"},
		"system:be brief":       {"system", "be brief"},
		"assistant:ok":          {"assistant", "ok"},
		"note: colons are fine": {"user", "note: colons are fine"},
	}
	for in, want := range tests {
		got := parseMessage(in)
		if got["role"] != want[0] || got["content"] != want[1] {
			t.Errorf("parseMessage(%q) = %v", in, got)
		}
	}
}

func TestGlobalOptions_FlagsOverrideConfig(t *testing.T) {
	o := &globalOptions{apiKey: "flag-key", rps: 2}
	cfg := o.apply(appConfig{RPS: 1})
	cfg.Client.Dialect = "openai"
	if cfg.Client.APIKey != "flag-key" || cfg.RPS != 2 {
		t.Fatalf("cfg=%+v", cfg)
	}

	c, err := newClient(cfg, nil)
	if err != nil {
		t.Fatalf("newClient() err=%v", err)
	}
	if c.Dialect().APIKey != "flag-key" {
		t.Fatalf("dialect=%+v", c.Dialect())
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "-o", "yaml"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() err=%v", err)
	}
	if !strings.Contains(out.String(), "gitVersion:") {
		t.Fatalf("out=%q", out.String())
	}
}

func TestStreamCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(`data: {"choices":[{"delta":{"content":"ok"}}]}` + "\n\n"))
	cmd.SetArgs([]string{"stream"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() err=%v", err)
	}
	if out.String() != "ok\n" {
		t.Fatalf("out=%q", out.String())
	}
}
