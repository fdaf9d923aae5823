package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lgc202/openai-kit/llm/providers/openai"
	"github.com/lgc202/openai-kit/llm/sse"
)

func newModelsCmd(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models [model-id]",
		Short: "List models, or show one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := o.setup(cmd)
			if err != nil {
				return err
			}
			var body []byte
			if len(args) == 1 {
				body, err = c.RetrieveModel(cmd.Context(), args[0])
			} else {
				body, err = c.ListModels(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

type chatOptions struct {
	model       string
	system      string
	messages    []string
	temperature float64
	maxTokens   int
	stream      bool
}

func newChatCmd(o *globalOptions) *cobra.Command {
	co := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Create a chat completion",
		Example: `  oaictl chat -m "hello"
  oaictl chat --stream --model gpt-4o -m "user:tell me a joke"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(co.messages) == 0 {
				return fmt.Errorf("at least one --message is required")
			}
			c, _, err := o.setup(cmd)
			if err != nil {
				return err
			}
			opts := co.options()
			if co.stream {
				return streamTo(cmd.OutOrStdout(), func(h sse.Handler) (sse.Result, error) {
					return c.ChatStream(cmd.Context(), opts, h)
				})
			}
			body, err := c.Chat(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	f := cmd.Flags()
	f.StringVar(&co.model, "model", "", "model, or deployment name for azure")
	f.StringVar(&co.system, "system", "", "system prompt")
	f.StringArrayVarP(&co.messages, "message", "m", nil, `message, optionally prefixed with "role:"`)
	f.Float64Var(&co.temperature, "temperature", -1, "sampling temperature")
	f.IntVar(&co.maxTokens, "max-tokens", 0, "max tokens to generate")
	f.BoolVar(&co.stream, "stream", false, "stream the response")
	return cmd
}

func (co *chatOptions) options() openai.Options {
	msgs := make([]map[string]string, 0, len(co.messages)+1)
	if co.system != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": co.system})
	}
	for _, m := range co.messages {
		msgs = append(msgs, parseMessage(m))
	}
	opts := openai.Options{"messages": msgs}
	if co.model != "" {
		opts["model"] = co.model
	}
	if co.temperature >= 0 {
		opts["temperature"] = co.temperature
	}
	if co.maxTokens > 0 {
		opts["max_tokens"] = co.maxTokens
	}
	return opts
}

func parseMessage(s string) map[string]string {
	if role, content, ok := strings.Cut(s, ":"); ok {
		switch role {
		case "system", "user", "assistant":
			return map[string]string{"role": role, "content": content}
		}
	}
	return map[string]string{"role": "user", "content": s}
}

func newCompleteCmd(o *globalOptions) *cobra.Command {
	var (
		model     string
		prompt    string
		maxTokens int
		stream    bool
	)
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Create a legacy text completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := o.setup(cmd)
			if err != nil {
				return err
			}
			opts := openai.Options{"prompt": prompt}
			if model != "" {
				opts["model"] = model
			}
			if maxTokens > 0 {
				opts["max_tokens"] = maxTokens
			}
			if stream {
				return streamTo(cmd.OutOrStdout(), func(h sse.Handler) (sse.Result, error) {
					return c.CompletionStream(cmd.Context(), opts, h)
				})
			}
			body, err := c.Completion(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "", "model, or deployment name for azure")
	f.StringVarP(&prompt, "prompt", "p", "", "prompt text")
	f.IntVar(&maxTokens, "max-tokens", 0, "max tokens to generate")
	f.BoolVar(&stream, "stream", false, "stream the response")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newEmbeddingsCmd(o *globalOptions) *cobra.Command {
	var (
		model  string
		inputs []string
	)
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Create embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := o.setup(cmd)
			if err != nil {
				return err
			}
			opts := openai.Options{"input": inputs}
			if model != "" {
				opts["model"] = model
			}
			body, err := c.Embeddings(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "text-embedding-ada-002", "model, or deployment name for azure")
	f.StringArrayVarP(&inputs, "input", "i", nil, "input text, repeatable")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// streamTo writes every delta to w as it arrives and ends the output with a newline.
func streamTo(w io.Writer, call func(sse.Handler) (sse.Result, error)) error {
	var werr error
	_, err := call(sse.Handler{
		Forward: func(s string) {
			if werr == nil {
				_, werr = io.WriteString(w, s)
			}
		},
	})
	fmt.Fprintln(w)
	if err != nil {
		return err
	}
	return werr
}

func printJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
