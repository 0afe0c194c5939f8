package judge

import (
	"context"

	"github.com/convotest/convotest/internal/llm"
)

// fakeLLMClient records the last request and returns a canned response.
type fakeLLMClient struct {
	ResponseToReturn *llm.Response
	ErrorToReturn    error
	WasCalled        bool
	LastRequest      llm.Request
}

func (f *fakeLLMClient) InvokeModel(ctx context.Context, request llm.Request) (*llm.Response, error) {
	f.WasCalled = true
	f.LastRequest = request
	return f.ResponseToReturn, f.ErrorToReturn
}

func (f *fakeLLMClient) InvokeModelWithRetry(ctx context.Context, request llm.Request) (*llm.Response, error) {
	return f.InvokeModel(ctx, request)
}
