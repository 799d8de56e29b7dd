// Package model defines the transient values passed between proxy layers.
package model

import (
	"context"
	"net/http"
)

// ProxyRequest is one inbound invocation to be forwarded upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Header http.Header
	Body   []byte
}

// ProxyResponse is a fully buffered upstream response.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the upstream status is 2xx.
func (r *ProxyResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
