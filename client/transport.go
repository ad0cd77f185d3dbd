package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// send performs one HTTP call. form is sent in the query for GET and in the
// body otherwise; body is used when form is nil.
func (s *Session) send(ctx context.Context, operation, method, uri string, header http.Header, form url.Values, body []byte, auth AuthFunc, timeout time.Duration) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	var reader io.Reader
	switch {
	case form != nil && method == http.MethodGet:
		u, err := url.Parse(uri)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid request URI: %w", err)
		}
		if u.RawQuery != "" {
			u.RawQuery += "&"
		}
		u.RawQuery += form.Encode()
		uri = u.String()
	case form != nil:
		reader = strings.NewReader(form.Encode())
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case body != nil:
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if method == http.MethodGet && form != nil {
		header.Del("Content-Type")
	}
	req.Header = header
	auth(req)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	s.metrics.RecordClientHTTP(ctx, operation, resp.StatusCode, float64(time.Since(start).Milliseconds()))
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
