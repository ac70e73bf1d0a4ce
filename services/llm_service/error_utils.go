package llm_service

import (
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v2"
)

// ProviderError is an API error returned by a model provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	ErrorType  string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (HTTP %d): %s (Type: %s)", e.Provider, e.StatusCode, e.Message, e.ErrorType)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// QuotaExceeded reports a 429 from the provider.
func (e *ProviderError) QuotaExceeded() bool { return e.StatusCode == 429 }

// describeProviderError extracts status and message from SDK errors.
// Transport errors keep a zero StatusCode.
func describeProviderError(provider string, err error) *ProviderError {
	perr := &ProviderError{Provider: provider, Err: err}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		perr.StatusCode = oaiErr.StatusCode
		perr.Message = oaiErr.Message
		perr.ErrorType = oaiErr.Type
		if perr.Message == "" {
			perr.Message = "Unknown error"
		}
		return perr
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		perr.StatusCode = antErr.StatusCode
		perr.Message = antErr.Error()
		perr.ErrorType = "api_error"
	}
	return perr
}
