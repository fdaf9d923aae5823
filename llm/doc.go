// Package llm holds what the API clients share: the normalized error model.
//
// Every failure surfaced by a client is an *Error carrying the HTTP status, the provider
// error code and a message, plus the stage that failed (Kind). Stream decoding lives in
// llm/sse, the OpenAI and Azure OpenAI dialects in llm/providers/openai, and downstream
// forwarding of streamed text in llm/relay.
package llm
