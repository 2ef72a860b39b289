package phraseflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is an opaque outbound request. Transport specifics live behind this
// boundary; middleware only builds requests and decodes responses.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// Response is an opaque inbound response.
type Response struct {
	StatusCode int
	Body       []byte
}

// RequestClient performs a request/response round trip.
type RequestClient interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// HTTPClient is a net/http-backed RequestClient. The app's speech and
// generation endpoints can take minutes, so the default timeout is long.
type HTTPClient struct {
	client *http.Client
}

var _ RequestClient = (*HTTPClient)(nil)

// DefaultRequestTimeout bounds a single round trip.
const DefaultRequestTimeout = 20 * time.Minute

// NewHTTPClient creates an HTTPClient. A non-positive timeout selects
// DefaultRequestTimeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Do(ctx context.Context, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, fmt.Errorf("phraseflow: build request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("phraseflow: round trip: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("phraseflow: read response: %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
