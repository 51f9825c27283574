// Package source acquires candidate images from the external search
// provider. The provider is rate-limited and flaky; callers are expected
// to retry with backoff.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/wb-go/wbf/config"
)

const (
	defaultEndpoint = "https://cn.bing.com/images/async"
	maxImageBytes   = 32 << 20
)

// murl carries the original image URL inside the result markup
var murlPattern = regexp.MustCompile(`"murl":"(.*?)"`)

type Client struct {
	http     *http.Client
	endpoint string
}

func NewClient(cfg *config.Config) *Client {
	endpoint := cfg.GetString("IMAGE_SOURCE_URL")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
	}
}

// Fetch returns the bytes and a name suggestion for the index-th candidate
// matching searchText. Errors are transient from the caller's point of
// view: the pipeline retries them with backoff.
func (c *Client) Fetch(ctx context.Context, searchText string, index int) ([]byte, string, error) {
	candidates, err := c.candidateURLs(ctx, searchText, index)
	if err != nil {
		return nil, "", err
	}

	for _, imgURL := range candidates {
		data, err := c.download(ctx, imgURL)
		if err != nil {
			continue
		}
		return data, nameFromURL(imgURL), nil
	}

	return nil, "", fmt.Errorf("no downloadable candidate for %q at index %d", searchText, index)
}

func (c *Client) candidateURLs(ctx context.Context, searchText string, index int) ([]string, error) {
	pageURL := fmt.Sprintf("%s?q=%s&mmasync=1&first=%d", c.endpoint, url.QueryEscape(searchText), index)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}

	matches := murlPattern.FindAllStringSubmatch(string(body), -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no candidates found for %q", searchText)
	}

	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		// strip the query part to avoid escaping surprises downstream
		u := m[1]
		if i := strings.Index(u, "?"); i > -1 {
			u = u[:i]
		}
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

func (c *Client) download(ctx context.Context, imgURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("candidate download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("candidate %q is empty", imgURL)
	}
	return data, nil
}

func nameFromURL(imgURL string) string {
	base := path.Base(imgURL)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" || base == "." || base == "/" {
		return "picture"
	}
	return base
}

func closeQuietly(r io.Closer) {
	_ = r.Close()
}
