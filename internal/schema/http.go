package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultFetchTimeout = 10 * time.Second

// HTTPSource fetches a JSON schema document from the schema service.
type HTTPSource struct {
	URL     string
	Timeout time.Duration
	// Headers are sent with every request, for example an API key.
	Headers map[string]string

	client *fasthttp.Client
}

// NewHTTPSource returns a source fetching url.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPSource{
		URL:     url,
		Timeout: timeout,
		client: &fasthttp.Client{
			Name:                "facetql-schema",
			MaxIdleConnDuration: time.Minute,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
	}
}

func (s *HTTPSource) Name() string {
	return "http:" + s.URL
}

func (s *HTTPSource) Fetch(ctx context.Context) (*Document, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.URL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	deadline := time.Now().Add(s.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("schema request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("schema service returned status %d", resp.StatusCode())
	}

	// The body is only valid until the response is released.
	body := append([]byte(nil), resp.Body()...)
	return DecodeJSON(body)
}
