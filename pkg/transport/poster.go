package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bravia-rpc/bravia-go/pkg/version"
)

// DefaultMaxBodySize bounds how much of a response body is read.
const DefaultMaxBodySize = 4 << 20

// HTTPResponse is a fully read HTTP response.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Poster performs one HTTP POST. A non-2xx status is a response, not an
// error; errors mean no response was received.
type Poster interface {
	Post(ctx context.Context, url string, header http.Header, body []byte) (*HTTPResponse, error)
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(ctx context.Context, url string, header http.Header, body []byte) (*HTTPResponse, error)

// Post implements Poster.
func (f PosterFunc) Post(ctx context.Context, url string, header http.Header, body []byte) (*HTTPResponse, error) {
	return f(ctx, url, header, body)
}

// HTTPPoster is a Poster over an *http.Client.
type HTTPPoster struct {
	client      *http.Client
	maxBodySize int64
}

// NewHTTPPoster wraps client. A nil client uses http.DefaultClient.
func NewHTTPPoster(client *http.Client) *HTTPPoster {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPoster{client: client, maxBodySize: DefaultMaxBodySize}
}

// Post sends body to url and reads the whole response. A User-Agent is
// added unless header carries one.
func (p *HTTPPoster) Post(ctx context.Context, url string, header http.Header, body []byte) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return nil, err
	}
	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

var (
	_ Poster = (*HTTPPoster)(nil)
	_ Poster = PosterFunc(nil)
)
