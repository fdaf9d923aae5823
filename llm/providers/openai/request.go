package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/lgc202/openai-kit/httpx"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
)

// Options is the body of a call: a JSON object, or multipart fields when it holds a
// "file" or "image" entry.
type Options map[string]any

func (o Options) clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// File is a multipart file part.
type File struct {
	Name    string
	Content io.Reader
}

// OpenFile reads path into a File.
func OpenFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Name: filepath.Base(path), Content: bytes.NewReader(b)}, nil
}

// IsMultipart reports whether opts must be sent as multipart form data.
func IsMultipart(opts Options) bool {
	_, file := opts["file"]
	_, image := opts["image"]
	return file || image
}

// Request is a built outbound call. No I/O has happened yet.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values

	// ContentType is always set, even when Body is nil.
	ContentType string
	Body        []byte
}

// Builder turns (method, path, options) into a Request for one dialect.
type Builder struct {
	header http.Header
	query  url.Values
}

func NewBuilder(d Dialect) Builder {
	return Builder{header: d.Header(), query: d.Query()}
}

// Build serializes opts. An empty opts produces a request without body.
func (b Builder) Build(method, path string, opts Options) (*Request, error) {
	r := &Request{
		Method:      method,
		Path:        path,
		Header:      b.header.Clone(),
		ContentType: ContentTypeJSON,
	}
	if b.query != nil {
		r.Query = make(url.Values, len(b.query))
		for k, vv := range b.query {
			r.Query[k] = slices.Clone(vv)
		}
	}
	if len(opts) == 0 {
		return r, nil
	}

	if IsMultipart(opts) {
		body, ct, err := encodeMultipart(opts)
		if err != nil {
			return nil, err
		}
		r.Body, r.ContentType = body, ct
		return r, nil
	}

	body, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	r.Body = body
	return r, nil
}

func (r *Request) httpOptions() []httpx.RequestOption {
	out := []httpx.RequestOption{
		httpx.WithHeaders(r.Header),
		httpx.WithQuery(r.Query),
		httpx.WithContentType(r.ContentType),
	}
	if r.Body != nil {
		out = append(out, httpx.WithBodyBytes(r.Body))
	}
	return out
}

func encodeMultipart(opts Options) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := slices.Sorted(maps.Keys(opts))
	for _, k := range keys {
		if err := writePart(w, k, opts[k]); err != nil {
			return nil, "", fmt.Errorf("encode multipart field %q: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, key string, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case File:
		return writeFile(w, key, x)
	case *File:
		if x == nil {
			return nil
		}
		return writeFile(w, key, *x)
	case string:
		return w.WriteField(key, x)
	case []byte:
		return w.WriteField(key, string(x))
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64, json.Number:
		return w.WriteField(key, fmt.Sprint(x))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return err
		}
		return w.WriteField(key, string(b))
	}
}

func writeFile(w *multipart.Writer, key string, f File) error {
	if f.Content == nil {
		return fmt.Errorf("file %q has no content", f.Name)
	}
	name := f.Name
	if name == "" {
		name = key
	}
	part, err := w.CreateFormFile(key, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f.Content)
	return err
}
