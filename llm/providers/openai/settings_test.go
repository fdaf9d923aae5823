package openai

import (
	"testing"
	"time"

	"github.com/lgc202/openai-kit/llm"
)

func TestSettings_BuildDialect(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
		check   func(t *testing.T, d Dialect)
	}{
		{
			name: "openai defaults",
			s:    Settings{APIKey: "k"},
			check: func(t *testing.T, d Dialect) {
				if d.Kind != DialectOpenAI || d.BaseURL != DefaultBaseURL || d.Auth != AuthBearer {
					t.Fatalf("dialect=%+v", d)
				}
			},
		},
		{
			name: "azure from resource",
			s:    Settings{Dialect: "Azure", APIKey: "k", Resource: "acme", Models: map[string]string{"gpt4": "gpt-4"}},
			check: func(t *testing.T, d Dialect) {
				if d.BaseURL != "https://acme.openai.azure.com/openai" || d.Auth != AuthAPIKey {
					t.Fatalf("dialect=%+v", d)
				}
				if d.APIVersion != DefaultAzureAPIVersion {
					t.Fatalf("api version=%q", d.APIVersion)
				}
				if d.Models["gpt4"] != "gpt-4" || d.Models["gpt35"] == "" {
					t.Fatalf("models=%v", d.Models)
				}
			},
		},
		{
			name: "azure bearer",
			s:    Settings{Dialect: "azure", BaseURL: "https://x/openai", AuthType: "bearer"},
			check: func(t *testing.T, d Dialect) {
				if d.Auth != AuthBearer {
					t.Fatalf("auth=%s", d.Auth)
				}
			},
		},
		{name: "azure without endpoint", s: Settings{Dialect: "azure"}, wantErr: true},
		{name: "unknown dialect", s: Settings{Dialect: "anthropic"}, wantErr: true},
		{name: "unknown auth", s: Settings{AuthType: "basic"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.s.BuildDialect()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildDialect() err=%v", err)
			}
			tt.check(t, d)
		})
	}
}

func TestNewFromSettings(t *testing.T) {
	c, err := NewFromSettings(Settings{APIKey: "k", Timeout: time.Second, EmbeddedErrors: true, MaxStreamBuffer: 1024})
	if err != nil {
		t.Fatalf("NewFromSettings() err=%v", err)
	}
	if !c.classifier.EmbeddedErrors {
		t.Fatalf("embedded errors not applied")
	}
	if len(c.streamOpts) != 1 {
		t.Fatalf("stream options=%d", len(c.streamOpts))
	}

	if _, err := NewFromSettings(Settings{Dialect: "nope"}); !llm.IsKind(err, llm.ErrKindConfiguration) {
		t.Fatalf("err=%v", err)
	}
}

func TestSettings_CompatibleVendors(t *testing.T) {
	d, err := Settings{Dialect: "deepseek", APIKey: "k"}.BuildDialect()
	if err != nil {
		t.Fatalf("BuildDialect() err=%v", err)
	}
	if d.Kind != DialectDeepSeek || d.BaseURL != DeepSeekBaseURL || d.ChatModel != "deepseek-chat" {
		t.Fatalf("dialect=%+v", d)
	}
	if d.Header().Get("Authorization") != "Bearer k" || d.Deployments {
		t.Fatalf("dialect=%+v", d)
	}

	d, err = Settings{Dialect: "ollama", BaseURL: "http://gpu-box:11434/v1"}.BuildDialect()
	if err != nil || d.BaseURL != "http://gpu-box:11434/v1" {
		t.Fatalf("dialect=%+v err=%v", d, err)
	}
	if Ollama().Header().Get("Authorization") != "" {
		t.Fatalf("ollama must not send a key")
	}
	if Kimi("k").BaseURL != KimiBaseURL || Qwen("k").BaseURL != QwenBaseURL {
		t.Fatalf("vendor endpoints")
	}
}
