// Package health checks that a deployed site answers HTTP 200.
package health

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrCheckFailed = errors.New("url check failed")

// DefaultTimeout applies when a Checker has no timeout.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of one URL.
type Result struct {
	URL        string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// OK reports whether the URL answered 200.
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode == http.StatusOK
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("`%s`: %v", r.URL, r.Err)
	}
	return fmt.Sprintf("HTTP status for `%s` is `%d`", r.URL, r.StatusCode)
}

// Checker issues GET requests against deployed URLs.
type Checker struct {
	client *http.Client
}

// NewChecker creates a checker. With verifyTLS false, certificate errors
// are ignored.
func NewChecker(timeout time.Duration, verifyTLS bool) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Checker{
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// CheckURL requests one URL.
func (c *Checker) CheckURL(ctx context.Context, url string) Result {
	start := time.Now()
	res := Result{URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("User-Agent", "fdep-url-check")

	resp, err := c.client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.StatusCode = resp.StatusCode
	return res
}

// Check requests every URL in order, calling report after each one. It
// returns ErrCheckFailed listing every URL that did not answer 200.
func (c *Checker) Check(ctx context.Context, urls []string, report func(Result)) ([]Result, error) {
	results := make([]Result, 0, len(urls))
	var failed []string

	for _, url := range urls {
		res := c.CheckURL(ctx, url)
		results = append(results, res)
		if report != nil {
			report(res)
		}
		if !res.OK() {
			failed = append(failed, res.String())
		}
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("%w:\n  %s", ErrCheckFailed, strings.Join(failed, "\n  "))
	}
	return results, nil
}
