package openai

import (
	"fmt"
	"strings"
	"time"

	"github.com/lgc202/openai-kit/httpx"
	"github.com/lgc202/openai-kit/llm/sse"
)

// Settings is the file/env form of a client configuration, see config.Load.
type Settings struct {
	// Dialect is "openai" (default), "azure", or an OpenAI-compatible vendor:
	// "deepseek", "kimi", "qwen", "ollama".
	Dialect string `mapstructure:"dialect" json:"dialect"`

	APIKey       string `mapstructure:"api_key" json:"api_key"`
	Organization string `mapstructure:"organization" json:"organization"`

	// AuthType is "bearer" or "api-key". Azure defaults to "api-key".
	AuthType string `mapstructure:"auth_type" json:"auth_type"`

	// BaseURL overrides the dialect endpoint. For Azure, Resource may be given instead.
	BaseURL    string `mapstructure:"base_url" json:"base_url"`
	Resource   string `mapstructure:"resource" json:"resource"`
	APIVersion string `mapstructure:"api_version" json:"api_version"`

	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// MaxRedirects of zero keeps the default, negative disables redirects.
	MaxRedirects int `mapstructure:"max_redirects" json:"max_redirects"`

	EmbeddedErrors   bool              `mapstructure:"embedded_errors" json:"embedded_errors"`
	TransientMarkers []string          `mapstructure:"transient_markers" json:"transient_markers"`
	MaxStreamBuffer  int               `mapstructure:"max_stream_buffer" json:"max_stream_buffer"`
	Models           map[string]string `mapstructure:"models" json:"models"`
}

// BuildDialect resolves the dialect described by s.
func (s Settings) BuildDialect() (Dialect, error) {
	var d Dialect
	switch DialectKind(strings.ToLower(strings.TrimSpace(s.Dialect))) {
	case "", DialectOpenAI:
		d = OpenAI(s.APIKey, s.Organization)
		if s.AuthType != "" {
			auth, ok := ParseAuthType(s.AuthType)
			if !ok {
				return Dialect{}, fmt.Errorf("unknown auth_type %q", s.AuthType)
			}
			d.Auth = auth
		}
		if s.BaseURL != "" {
			d.BaseURL = s.BaseURL
		}
	case DialectAzure:
		auth := AuthAPIKey
		if s.AuthType != "" {
			var ok bool
			if auth, ok = ParseAuthType(s.AuthType); !ok {
				return Dialect{}, fmt.Errorf("unknown auth_type %q", s.AuthType)
			}
		}
		base := s.BaseURL
		if base == "" && s.Resource != "" {
			base = AzureBaseURL(s.Resource)
		}
		if base == "" {
			return Dialect{}, fmt.Errorf("azure dialect needs base_url or resource")
		}
		d = Azure(base, s.APIKey, s.APIVersion, auth)
	default:
		kind := DialectKind(strings.ToLower(strings.TrimSpace(s.Dialect)))
		var ok bool
		if d, ok = Compatible(kind, s.APIKey); !ok {
			return Dialect{}, fmt.Errorf("unknown dialect %q", s.Dialect)
		}
		if s.BaseURL != "" {
			d.BaseURL = s.BaseURL
		}
	}

	for k, v := range s.Models {
		if d.Models == nil {
			d.Models = make(map[string]string)
		}
		d.Models[k] = v
	}
	return d, nil
}

// Options translates the transport and decoder knobs of s into client options.
func (s Settings) Options() []Option {
	var opts []Option
	if s.Timeout > 0 {
		opts = append(opts, WithTimeout(s.Timeout))
	}
	if s.MaxRedirects != 0 {
		opts = append(opts, WithHTTPOptions(httpx.WithMaxRedirects(s.MaxRedirects)))
	}
	if s.EmbeddedErrors {
		opts = append(opts, WithEmbeddedErrors(true))
	}

	var sopts []sse.Option
	if len(s.TransientMarkers) > 0 {
		sopts = append(sopts, sse.WithTransientMarkers(s.TransientMarkers...))
	}
	if s.MaxStreamBuffer > 0 {
		sopts = append(sopts, sse.WithMaxBuffer(s.MaxStreamBuffer))
	}
	if len(sopts) > 0 {
		opts = append(opts, WithStreamOptions(sopts...))
	}
	return opts
}

// NewFromSettings builds a Client from s. opts are applied after the ones derived from s.
func NewFromSettings(s Settings, opts ...Option) (*Client, error) {
	d, err := s.BuildDialect()
	if err != nil {
		return nil, configError(err.Error())
	}
	return New(d, append(s.Options(), opts...)...)
}
