package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// StatusError is a non-200 answer from an HTTP-backed provider
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsTransient reports whether a provider call failed in a way worth retrying:
// a timeout, a rate limit, or a server error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= 500
	}

	// Connection-level failures without a status
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) && oaiAPI.HTTPStatusCode != 0 {
		return oaiAPI.HTTPStatusCode, true
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) && oaiReq.HTTPStatusCode != 0 {
		return oaiReq.HTTPStatusCode, true
	}
	var anth *anthropic.Error
	if errors.As(err, &anth) && anth.StatusCode != 0 {
		return anth.StatusCode, true
	}
	return 0, false
}
