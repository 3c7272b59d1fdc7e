// Package httpx decouples probe handlers from the HTTP engine so the
// same handler can serve on net/http or fasthttp listeners.
package httpx

import (
	"context"
	"io"
	"net/http"
)

// Request is the unified request representation used by handlers.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
}

// ResponseWriter is the small subset of http.ResponseWriter semantics
// adapters must provide.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the engine-independent handler signature.
type HandlerFunc func(w ResponseWriter, r *Request)
