package openai

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
)

func TestBuild_ContentTypeFollowsFileFields(t *testing.T) {
	b := NewBuilder(OpenAI("k", ""))

	tests := []struct {
		name      string
		opts      Options
		multipart bool
	}{
		{name: "plain", opts: Options{"model": "m", "prompt": "hi"}, multipart: false},
		{name: "nested", opts: Options{"messages": []map[string]string{{"role": "user", "content": "x"}}}, multipart: false},
		{name: "file key", opts: Options{"file": File{Name: "a.jsonl", Content: strings.NewReader("{}")}, "purpose": "fine-tune"}, multipart: true},
		{name: "image key", opts: Options{"image": File{Name: "a.png", Content: strings.NewReader("png")}, "n": 2}, multipart: true},
		{name: "image key nil value", opts: Options{"image": nil, "prompt": "p"}, multipart: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := b.Build(http.MethodPost, "/x", tt.opts)
			if err != nil {
				t.Fatalf("Build() err=%v", err)
			}
			mt, _, err := mime.ParseMediaType(req.ContentType)
			if err != nil {
				t.Fatalf("content type %q: %v", req.ContentType, err)
			}
			if got := mt == ContentTypeMultipart; got != tt.multipart {
				t.Fatalf("content type=%q multipart=%v", req.ContentType, tt.multipart)
			}
			if !tt.multipart && !json.Valid(req.Body) {
				t.Fatalf("body is not json: %s", req.Body)
			}
		})
	}
}

func TestBuild_MultipartFields(t *testing.T) {
	req, err := NewBuilder(OpenAI("k", "")).Build(http.MethodPost, "/files", Options{
		"file":    File{Name: "train.jsonl", Content: strings.NewReader(`{"prompt":"a"}`)},
		"purpose": "fine-tune",
		"n":       3,
	})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	_, params, err := mime.ParseMediaType(req.ContentType)
	if err != nil {
		t.Fatal(err)
	}

	r := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	got := map[string]string{}
	files := map[string]string{}
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart() err=%v", err)
		}
		b, _ := io.ReadAll(p)
		if p.FileName() != "" {
			files[p.FormName()] = p.FileName()
		}
		got[p.FormName()] = string(b)
	}
	if got["purpose"] != "fine-tune" || got["n"] != "3" || got["file"] != `{"prompt":"a"}` {
		t.Fatalf("fields=%v", got)
	}
	if files["file"] != "train.jsonl" {
		t.Fatalf("files=%v", files)
	}
}

func TestBuild_EmptyOptionsHaveNoBody(t *testing.T) {
	req, err := NewBuilder(Azure("https://r.openai.azure.com/openai", "k", "", AuthAPIKey)).Build(http.MethodGet, "/models", nil)
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if req.Body != nil {
		t.Fatalf("body=%q", req.Body)
	}
	if req.ContentType != ContentTypeJSON {
		t.Fatalf("content type=%q", req.ContentType)
	}
	if got := req.Query.Get("api-version"); got != DefaultAzureAPIVersion {
		t.Fatalf("api-version=%q", got)
	}
	if got := req.Header.Get("api-key"); got != "k" {
		t.Fatalf("api-key=%q", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("unexpected Authorization header")
	}
}

func TestBuild_UnencodableOption(t *testing.T) {
	_, err := NewBuilder(OpenAI("k", "")).Build(http.MethodPost, "/x", Options{"bad": func() {}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestDialect_Headers(t *testing.T) {
	h := OpenAI("sk", "org-1").Header()
	if h.Get("Authorization") != "Bearer sk" || h.Get("OpenAI-Organization") != "org-1" {
		t.Fatalf("headers=%v", h)
	}
	if OpenAI("sk", "").Header().Get("OpenAI-Organization") != "" {
		t.Fatalf("organization header without organization")
	}

	az := Azure("https://x", "tok", "2024-02-01", AuthBearer)
	if az.Header().Get("Authorization") != "Bearer tok" || az.Header().Get("api-key") != "" {
		t.Fatalf("headers=%v", az.Header())
	}
	if az.Query().Get("api-version") != "2024-02-01" {
		t.Fatalf("query=%v", az.Query())
	}
	if OpenAI("sk", "").Query() != nil {
		t.Fatalf("openai dialect must not add query parameters")
	}
}

func TestDialect_ModelPath(t *testing.T) {
	az := Azure(AzureBaseURL("res"), "k", "", AuthAPIKey)
	if got := az.ModelPath("gpt-3.5-turbo", "/chat/completions"); got != "/deployments/gpt-35-turbo/chat/completions" {
		t.Fatalf("path=%q", got)
	}
	if got := OpenAI("k", "").ModelPath("gpt-3.5-turbo", "/chat/completions"); got != "/chat/completions" {
		t.Fatalf("path=%q", got)
	}
	if got := az.ResolveModel("gpt3.5"); got != "gpt-3.5-turbo" {
		t.Fatalf("ResolveModel=%q", got)
	}
	if got := az.ResolveModel("custom"); got != "custom" {
		t.Fatalf("ResolveModel=%q", got)
	}
	if AzureBaseURL("res") != "https://res.openai.azure.com/openai" {
		t.Fatalf("AzureBaseURL=%q", AzureBaseURL("res"))
	}
}
