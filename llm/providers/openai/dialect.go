package openai

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	gogpt "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultAzureAPIVersion is sent as the api-version query parameter when none is configured.
	DefaultAzureAPIVersion = "2023-07-01"

	DefaultChatModel       = gogpt.GPT3Dot5Turbo
	DefaultCompletionModel = gogpt.GPT3TextDavinci003
)

// DialectKind names an API flavour.
type DialectKind string

const (
	DialectOpenAI DialectKind = "openai"
	DialectAzure  DialectKind = "azure"
)

// AuthType selects how the API key is presented.
type AuthType int

const (
	// AuthBearer sends "Authorization: Bearer <key>".
	AuthBearer AuthType = iota
	// AuthAPIKey sends "api-key: <key>".
	AuthAPIKey
)

// ParseAuthType accepts "bearer", "token", "api-key" and "api_key".
func ParseAuthType(s string) (AuthType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bearer", "token":
		return AuthBearer, true
	case "api-key", "api_key", "apikey":
		return AuthAPIKey, true
	default:
		return AuthBearer, false
	}
}

func (a AuthType) String() string {
	if a == AuthAPIKey {
		return "api-key"
	}
	return "bearer"
}

// Dialect is everything that differs between the OpenAI and Azure flavours of the API.
// A Client copies it at construction time.
type Dialect struct {
	Kind DialectKind

	BaseURL string

	Auth   AuthType
	APIKey string

	// Organization is sent as OpenAI-Organization when set.
	Organization string

	// APIVersion is appended as ?api-version= to every call when set.
	APIVersion string

	// AcceptedStatuses is the success set handed to the Classifier.
	AcceptedStatuses []int

	// Deployments moves the model of model-scoped calls out of the body and into
	// a /deployments/{model} path segment.
	Deployments bool

	// Models maps short deployment names to model names, e.g. gpt35 -> gpt-3.5-turbo.
	Models map[string]string

	// Default models filled in when a call has no "model" option.
	ChatModel       string
	CompletionModel string
}

// OpenAI returns the api.openai.com dialect. organization may be empty.
func OpenAI(apiKey, organization string) Dialect {
	return Dialect{
		Kind:             DialectOpenAI,
		BaseURL:          DefaultBaseURL,
		Auth:             AuthBearer,
		APIKey:           apiKey,
		Organization:     organization,
		AcceptedStatuses: []int{http.StatusOK},
		ChatModel:        DefaultChatModel,
		CompletionModel:  DefaultCompletionModel,
	}
}

// Azure returns the Azure OpenAI dialect. baseURL is the resource endpoint including
// the /openai prefix, see AzureBaseURL. An empty apiVersion means DefaultAzureAPIVersion.
func Azure(baseURL, apiKey, apiVersion string, auth AuthType) Dialect {
	if strings.TrimSpace(apiVersion) == "" {
		apiVersion = DefaultAzureAPIVersion
	}
	return Dialect{
		Kind:             DialectAzure,
		BaseURL:          baseURL,
		Auth:             auth,
		APIKey:           apiKey,
		APIVersion:       apiVersion,
		AcceptedStatuses: []int{http.StatusOK, http.StatusCreated},
		Deployments:      true,
		Models: map[string]string{
			"gpt35": gogpt.GPT3Dot5Turbo,
		},
	}
}

// AzureBaseURL builds the endpoint of an Azure OpenAI resource.
func AzureBaseURL(resource string) string {
	return "https://" + strings.TrimSpace(resource) + ".openai.azure.com/openai"
}

func (d Dialect) clone() Dialect {
	out := d
	out.AcceptedStatuses = slices.Clone(d.AcceptedStatuses)
	if d.Models != nil {
		out.Models = make(map[string]string, len(d.Models))
		for k, v := range d.Models {
			out.Models[k] = v
		}
	}
	return out
}

// Header returns the authentication headers of the dialect.
func (d Dialect) Header() http.Header {
	h := make(http.Header)
	if d.APIKey != "" {
		switch d.Auth {
		case AuthAPIKey:
			h.Set("api-key", d.APIKey)
		default:
			h.Set("Authorization", "Bearer "+d.APIKey)
		}
	}
	if d.Organization != "" {
		h.Set("OpenAI-Organization", d.Organization)
	}
	return h
}

// Query returns the query parameters every call carries.
func (d Dialect) Query() url.Values {
	if d.APIVersion == "" {
		return nil
	}
	return url.Values{"api-version": []string{d.APIVersion}}
}

// SanitizeModel strips the separators a deployment name may not contain.
func SanitizeModel(model string) string {
	return strings.ReplaceAll(strings.TrimSpace(model), ".", "")
}

// ModelPath returns the path of a model-scoped endpoint such as "/chat/completions".
func (d Dialect) ModelPath(model, suffix string) string {
	if !d.Deployments {
		return suffix
	}
	return "/deployments/" + url.PathEscape(SanitizeModel(model)) + suffix
}

// ResolveModel maps a deployment alias to its model name. Unknown names are returned unchanged.
func (d Dialect) ResolveModel(name string) string {
	if m, ok := d.Models[SanitizeModel(name)]; ok {
		return m
	}
	return name
}
