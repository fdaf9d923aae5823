package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/lgc202/openai-kit/config"
	"github.com/lgc202/openai-kit/httpx"
	"github.com/lgc202/openai-kit/llm/providers/openai"
	"github.com/lgc202/openai-kit/version"
)

const envPrefix = "OAI"

type logSettings struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type serveSettings struct {
	Listen string `mapstructure:"listen" json:"listen"`
}

type appConfig struct {
	Client openai.Settings `mapstructure:"client" json:"client"`
	Log    logSettings     `mapstructure:"log" json:"log"`
	Serve  serveSettings   `mapstructure:"serve" json:"serve"`

	// RPS limits outgoing requests per second. Zero disables the limiter.
	RPS float64 `mapstructure:"rps" json:"rps"`
}

var envKeys = []string{
	"client.dialect", "client.api_key", "client.organization", "client.auth_type",
	"client.base_url", "client.resource", "client.api_version", "client.timeout",
	"log.level", "log.format", "serve.listen", "rps",
}

// globalOptions are the persistent flags. Set flags override the config file and environment.
type globalOptions struct {
	configFile string

	dialect    string
	apiKey     string
	baseURL    string
	apiVersion string
	authType   string
	timeout    time.Duration
	rps        float64

	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	o := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "oaictl",
		Short:         "OpenAI / Azure OpenAI command line client",
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&o.configFile, "config", "c", "", "config file (yaml, json or toml)")
	f.StringVar(&o.dialect, "dialect", "", "api dialect: openai or azure")
	f.StringVar(&o.apiKey, "api-key", "", "api key (default $OAI_CLIENT_API_KEY)")
	f.StringVar(&o.baseURL, "base-url", "", "override the api endpoint")
	f.StringVar(&o.apiVersion, "api-version", "", "azure api-version")
	f.StringVar(&o.authType, "auth-type", "", "bearer or api-key")
	f.DurationVar(&o.timeout, "timeout", 0, "call timeout (default 5m)")
	f.Float64Var(&o.rps, "rps", 0, "max requests per second, 0 for unlimited")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&o.logFormat, "log-format", "", "text or json")

	cmd.AddCommand(
		newModelsCmd(o),
		newChatCmd(o),
		newCompleteCmd(o),
		newEmbeddingsCmd(o),
		newStreamCmd(o),
		newServeCmd(o),
		newVersionCmd(),
	)
	return cmd
}

func (o *globalOptions) load(watch bool) (*config.Config[appConfig], error) {
	return config.Load(o.configFile,
		config.WithDefaults[appConfig](map[string]any{
			"log.level":    "info",
			"log.format":   "text",
			"serve.listen": ":8080",
		}),
		config.WithEnv[appConfig](envPrefix),
		config.WithBindEnv[appConfig](envKeys...),
		config.WithWatch[appConfig](watch),
	)
}

func (o *globalOptions) apply(cfg appConfig) appConfig {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Client.Dialect, o.dialect)
	set(&cfg.Client.APIKey, o.apiKey)
	set(&cfg.Client.BaseURL, o.baseURL)
	set(&cfg.Client.APIVersion, o.apiVersion)
	set(&cfg.Client.AuthType, o.authType)
	set(&cfg.Log.Level, o.logLevel)
	set(&cfg.Log.Format, o.logFormat)
	if o.timeout > 0 {
		cfg.Client.Timeout = o.timeout
	}
	if o.rps > 0 {
		cfg.RPS = o.rps
	}
	return cfg
}

// resolve loads the configuration once and applies the flags.
func (o *globalOptions) resolve() (appConfig, error) {
	c, err := o.load(false)
	if err != nil {
		return appConfig{}, err
	}
	return o.apply(c.Get()), nil
}

func newLogger(s logSettings, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if lv := strings.TrimSpace(s.Level); lv != "" {
		if err := level.UnmarshalText([]byte(lv)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(s.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", s.Format)
	}
}

func newClient(cfg appConfig, logger *slog.Logger, extra ...openai.Option) (*openai.Client, error) {
	opts := []openai.Option{
		openai.WithLogger(logger),
		openai.WithHTTPOptions(httpx.WithUserAgent(version.Get().UserAgent("oaictl"))),
	}
	c, err := openai.NewFromSettings(cfg.Client, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		c.HTTP().WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RPS), burst))
	}
	return c, nil
}

// setup is the common prologue of the API commands.
func (o *globalOptions) setup(cmd *cobra.Command) (*openai.Client, *slog.Logger, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	c, err := newClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}
