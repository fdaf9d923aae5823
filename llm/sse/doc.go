// Package sse decodes the streamed chat/completion protocol: blank-line delimited frames,
// each "data: " followed by a JSON object, terminated by "data: [DONE]".
//
// A Decoder is fed raw body chunks in arrival order and yields Frame values on demand:
//
//	dec := sse.NewDecoder()
//	dec.Feed(chunk)
//	for {
//		f, ok := dec.Next()
//		if !ok {
//			break // need more input, or dec.State().Terminal()
//		}
//		...
//	}
//
// Drain does the loop above and drives a Handler. A Decoder is not safe for concurrent use.
package sse
