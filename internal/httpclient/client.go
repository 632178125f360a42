package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/vegasload/internal/scenario"
)

// RequestBuilder turns scenario actions into HTTP requests.
type RequestBuilder struct {
	userAgent string
}

// NewRequestBuilder creates a builder that stamps every request with userAgent.
func NewRequestBuilder(userAgent string) *RequestBuilder {
	return &RequestBuilder{userAgent: strings.TrimSpace(userAgent)}
}

// Build creates the main request of an action.
func (b *RequestBuilder) Build(ctx context.Context, action scenario.Action) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(action.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := strings.TrimSpace(action.URL)
	if target == "" {
		return nil, fmt.Errorf("action %q: URL is required", action.Name)
	}

	// A *bytes.Reader body gets ContentLength and a replaying GetBody.
	var body io.Reader
	if len(action.Body) > 0 {
		body = bytes.NewReader(action.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for key, values := range action.Headers {
		canonicalKey, err := validHeaderKey(key)
		if err != nil {
			return nil, err
		}
		for _, value := range values {
			if strings.ContainsAny(value, "\r\n") {
				return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
			}
			req.Header.Add(canonicalKey, value)
		}
	}

	if err := b.setCommon(req, action.Referer, action.Accept); err != nil {
		return nil, err
	}
	return req, nil
}

// BuildResource creates the GET for an auxiliary resource loaded by a page.
func (b *RequestBuilder) BuildResource(ctx context.Context, url, referer string) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if err := b.setCommon(req, referer, "*/*"); err != nil {
		return nil, err
	}
	return req, nil
}

func (b *RequestBuilder) setCommon(req *http.Request, referer, accept string) error {
	for key, value := range map[string]string{
		"Referer":    referer,
		"Accept":     accept,
		"User-Agent": b.userAgent,
	} {
		if value == "" {
			continue
		}
		if strings.ContainsAny(value, "\r\n") {
			return fmt.Errorf("invalid header value for %s", key)
		}
		req.Header.Set(key, value)
	}
	return nil
}

func validHeaderKey(key string) (string, error) {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n: ") {
		return "", fmt.Errorf("invalid header key %q", key)
	}
	return http.CanonicalHeaderKey(trimmedKey), nil
}

// NewClient creates a pooled HTTP client. maxConnsPerHost caps the
// connections to the target across all virtual users; 0 means unlimited.
func NewClient(timeout time.Duration, maxConnsPerHost int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if maxConnsPerHost < 0 {
		maxConnsPerHost = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	idlePerHost := 32
	if maxConnsPerHost > idlePerHost {
		idlePerHost = maxConnsPerHost
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   idlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
