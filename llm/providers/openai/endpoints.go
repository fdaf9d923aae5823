package openai

import (
	"context"
	"net/http"
	"net/url"
)

// Models

func (c *Client) ListModels(ctx context.Context) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/models", nil)
}

func (c *Client) RetrieveModel(ctx context.Context, model string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/models/"+url.PathEscape(model), nil)
}

// Completions

// Chat creates a chat completion. Use ChatStream for streamed responses.
func (c *Client) Chat(ctx context.Context, opts Options) ([]byte, error) {
	return c.modelCall(ctx, opts, "/chat/completions", c.dialect.ChatModel)
}

// Completion creates a legacy completion. Use CompletionStream for streamed responses.
func (c *Client) Completion(ctx context.Context, opts Options) ([]byte, error) {
	return c.modelCall(ctx, opts, "/completions", c.dialect.CompletionModel)
}

func (c *Client) Embeddings(ctx context.Context, opts Options) ([]byte, error) {
	return c.modelCall(ctx, opts, "/embeddings", "")
}

func (c *Client) modelCall(ctx context.Context, opts Options, suffix, defaultModel string) ([]byte, error) {
	if v, ok := opts["stream"]; ok && v == true {
		return nil, configError(`"stream": true needs a streaming call`)
	}
	path, body, err := c.modelScoped(opts, suffix, defaultModel, false)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, path, body)
}

func (c *Client) CreateEdit(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/edits", opts)
}

func (c *Client) Moderation(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/moderations", opts)
}

// Images

func (c *Client) Image(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/images/generations", opts)
}

func (c *Client) ImageEdit(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/images/edits", opts)
}

func (c *Client) CreateImageVariation(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/images/variations", opts)
}

// Audio

func (c *Client) Transcribe(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/audio/transcriptions", opts)
}

func (c *Client) Translate(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/audio/translations", opts)
}

// Files

func (c *Client) UploadFile(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/files", opts)
}

// ImportFile imports a file from blob storage. Azure only.
func (c *Client) ImportFile(ctx context.Context, opts Options) ([]byte, error) {
	if err := c.requireDeployments("ImportFile"); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, "/files/import", opts)
}

func (c *Client) ListFiles(ctx context.Context) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/files", nil)
}

func (c *Client) RetrieveFile(ctx context.Context, fileID string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID), nil)
}

func (c *Client) RetrieveFileContent(ctx context.Context, fileID string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", nil)
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil)
}

// Fine-tunes

func (c *Client) CreateFineTune(ctx context.Context, opts Options) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, "/fine-tunes", opts)
}

func (c *Client) ListFineTunes(ctx context.Context) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/fine-tunes", nil)
}

func (c *Client) RetrieveFineTune(ctx context.Context, id string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/fine-tunes/"+url.PathEscape(id), nil)
}

func (c *Client) CancelFineTune(ctx context.Context, id string) ([]byte, error) {
	var body Options
	if c.dialect.Deployments {
		body = Options{"fine_tune_id": id}
	}
	return c.Do(ctx, http.MethodPost, "/fine-tunes/"+url.PathEscape(id)+"/cancel", body)
}

func (c *Client) ListFineTuneEvents(ctx context.Context, id string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, "/fine-tunes/"+url.PathEscape(id)+"/events", nil)
}

func (c *Client) DeleteFineTune(ctx context.Context, id string) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, "/fine-tunes/"+url.PathEscape(id), nil)
}

// Deployments (Azure only)

func (c *Client) CreateDeployment(ctx context.Context, opts Options) ([]byte, error) {
	if err := c.requireDeployments("CreateDeployment"); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPost, "/deployments", opts)
}

func (c *Client) ListDeployments(ctx context.Context) ([]byte, error) {
	if err := c.requireDeployments("ListDeployments"); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, "/deployments", nil)
}

func (c *Client) RetrieveDeployment(ctx context.Context, id string) ([]byte, error) {
	if err := c.requireDeployments("RetrieveDeployment"); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, "/deployments/"+url.PathEscape(id), nil)
}

func (c *Client) UpdateDeployment(ctx context.Context, id string, opts Options) ([]byte, error) {
	if err := c.requireDeployments("UpdateDeployment"); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodPatch, "/deployments/"+url.PathEscape(id), opts)
}

func (c *Client) DeleteDeployment(ctx context.Context, id string) ([]byte, error) {
	if err := c.requireDeployments("DeleteDeployment"); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodDelete, "/deployments/"+url.PathEscape(id), nil)
}

func (c *Client) requireDeployments(op string) error {
	if c.dialect.Deployments {
		return nil
	}
	return configError(op + " is not available on the " + string(c.dialect.Kind) + " dialect")
}
