package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lgc202/openai-kit/llm/sse"
)

type streamOptions struct {
	file       string
	completion bool
	maxBuffer  int
	markers    []string
	frames     bool
}

// newStreamCmd decodes a captured event stream offline, which helps when debugging
// gateways that send unexpected frames.
func newStreamCmd(_ *globalOptions) *cobra.Command {
	so := &streamOptions{}
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Decode a captured chat/completion event stream",
		Example: `  curl -sN ... | oaictl stream
  oaictl stream --file capture.txt --frames`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if so.file != "" && so.file != "-" {
				f, err := os.Open(so.file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			_, err := decodeStream(in, cmd.OutOrStdout(), so)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&so.file, "file", "f", "-", "capture file, - for stdin")
	f.BoolVar(&so.completion, "completion", false, "legacy completion chunks (choices[0].text)")
	f.IntVar(&so.maxBuffer, "max-buffer", 0, "fail when a frame exceeds this many bytes, 0 for unbounded")
	f.StringArrayVar(&so.markers, "transient-marker", nil, "additional transient error marker, repeatable")
	f.BoolVar(&so.frames, "frames", false, "print one line per frame instead of the text")
	return cmd
}

func decodeStream(in io.Reader, out io.Writer, so *streamOptions) (sse.Result, error) {
	opts := []sse.Option{sse.WithTransientMarkers(so.markers...), sse.WithMaxBuffer(so.maxBuffer)}
	if so.completion {
		opts = append(opts, sse.WithDeltaFunc(sse.CompletionDelta))
	}
	dec := sse.NewDecoder(opts...)

	buf := make([]byte, 4<<10)
	for !dec.State().Terminal() {
		n, err := in.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				f, ok := dec.Next()
				if !ok {
					break
				}
				if so.frames {
					fmt.Fprintf(out, "%-9s %q\n", f.Kind, f.Raw)
				} else if f.Kind == sse.KindData {
					fmt.Fprint(out, f.Delta)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			dec.Finish()
			break
		}
		if err != nil {
			return dec.Result(), err
		}
	}

	res := dec.Result()
	if !so.frames {
		fmt.Fprintln(out)
	}
	if e := dec.Err(); e != nil {
		return res, e
	}
	return res, nil
}
