// Package provider builds the Anthropic client used by the runner.
package provider

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NewAnthropicClient returns a client using the API key from the env; opts are applied after it.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest

// Model returns name as a model id, falling back to DefaultModel.
func Model(name string) anthropic.Model {
	if name == "" {
		return DefaultModel
	}
	return anthropic.Model(name)
}
