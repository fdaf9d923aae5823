// Command oaictl talks to the OpenAI and Azure OpenAI APIs from the command line and can
// relay streamed chat completions to downstream HTTP clients.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
