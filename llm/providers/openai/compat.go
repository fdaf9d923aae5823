package openai

import "net/http"

// OpenAI-compatible vendors. They share the OpenAI dialect and differ in endpoint and
// default chat model only.
const (
	DialectDeepSeek DialectKind = "deepseek"
	DialectKimi     DialectKind = "kimi"
	DialectQwen     DialectKind = "qwen"
	DialectOllama   DialectKind = "ollama"

	DeepSeekBaseURL = "https://api.deepseek.com"
	KimiBaseURL     = "https://api.moonshot.cn/v1"
	QwenBaseURL     = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	OllamaBaseURL   = "http://localhost:11434/v1"
)

var compatible = map[DialectKind]struct {
	baseURL   string
	chatModel string
}{
	DialectDeepSeek: {DeepSeekBaseURL, "deepseek-chat"},
	DialectKimi:     {KimiBaseURL, "moonshot-v1-8k"},
	DialectQwen:     {QwenBaseURL, "qwen-plus"},
	DialectOllama:   {OllamaBaseURL, ""},
}

// Compatible returns the dialect of an OpenAI-compatible vendor. ok is false for
// unknown kinds.
func Compatible(kind DialectKind, apiKey string) (d Dialect, ok bool) {
	v, ok := compatible[kind]
	if !ok {
		return Dialect{}, false
	}
	return Dialect{
		Kind:             kind,
		BaseURL:          v.baseURL,
		Auth:             AuthBearer,
		APIKey:           apiKey,
		AcceptedStatuses: []int{http.StatusOK},
		ChatModel:        v.chatModel,
	}, true
}

func DeepSeek(apiKey string) Dialect { d, _ := Compatible(DialectDeepSeek, apiKey); return d }

func Kimi(apiKey string) Dialect { d, _ := Compatible(DialectKimi, apiKey); return d }

func Qwen(apiKey string) Dialect { d, _ := Compatible(DialectQwen, apiKey); return d }

// Ollama talks to a local server, which ignores the key.
func Ollama() Dialect { d, _ := Compatible(DialectOllama, ""); return d }
