// Package webfetch is a ready-made tool that fetches a web page and hands
// its content to the model as Markdown.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/turnwire/turnwire/internal/httpx"
	"github.com/turnwire/turnwire/tools"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "turnwire-webfetch/1.0"
	maxBodySize    = 10 * 1024 * 1024
	maxRedirects   = 10
)

// Input is what the model supplies when calling the tool.
type Input struct {
	// URL may be partial ("example.com"); https:// is assumed.
	URL string `json:"url" jsonschema:"description=URL of the page to fetch; partial URLs like 'example.com' are allowed,required"`

	// TimeoutSeconds overrides the default 30 second timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" jsonschema:"description=Request timeout in seconds"`
}

// Output is returned to the model.
type Output struct {
	// URL is the final URL after redirects.
	URL string `json:"url" jsonschema:"description=Final URL after following redirects"`

	// Markdown is the page content converted from HTML.
	Markdown string `json:"markdown" jsonschema:"description=Page content converted to Markdown"`
}

// New returns the web fetch tool.
func New() *tools.Tool[Input, Output] {
	return tools.MustNew("web_fetch",
		"Fetches a web page over HTTP(S) and returns its content converted to Markdown. Follows redirects and accepts partial URLs.",
		Fetch)
}

// Fetch retrieves the page at input.URL and converts it to Markdown. The
// body is capped at 10MB and at most ten redirects are followed.
func Fetch(ctx context.Context, input Input) (Output, error) {
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return Output{}, fmt.Errorf("webfetch: empty URL")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	timeout := defaultTimeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Output{}, fmt.Errorf("webfetch: build request: %w", err)
	}
	request.Header.Set("User-Agent", userAgent)

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	response, err := client.Do(request)
	if err != nil {
		return Output{}, fmt.Errorf("webfetch: fetch %s: %w", url, err)
	}
	defer httpx.CloseQuietly(response.Body)

	if response.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("webfetch: %s returned status %d", url, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return Output{}, fmt.Errorf("webfetch: read body: %w", err)
	}
	if len(body) == maxBodySize {
		return Output{}, fmt.Errorf("webfetch: body exceeds %d bytes", maxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return Output{}, fmt.Errorf("webfetch: convert to markdown: %w", err)
	}

	return Output{
		URL:      response.Request.URL.String(),
		Markdown: markdown,
	}, nil
}
