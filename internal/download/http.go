package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/playkit/dtg/internal/domain"
)

// Client fetches playlist text (for the hls.Fetcher interface) and task
// bodies (for the worker), applying a configured user-agent and timeout.
type Client struct {
	http      *http.Client
	userAgent string
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// FetchText implements hls.Fetcher.
func (c *Client) FetchText(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", domain.NewMalformedPlaylist("invalid playlist URL: " + err.Error())
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.NewNetworkTimeout(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewHTTPFailure(url, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewNetworkTimeout(url, err)
	}
	return string(body), nil
}

// FetchBody issues a task's GET, asking to resume via a Range header
// whenever offset > 0 (spec §4.6); no prior Accept-Ranges advertisement is
// checked. The caller must close the returned body. acceptsRanges reports
// whether the server actually honored the Range request (status 206).
func (c *Client) FetchBody(ctx context.Context, url string, offset int64) (body io.ReadCloser, acceptsRanges bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, domain.NewMalformedPlaylist("invalid task URL: " + err.Error())
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, domain.NewNetworkTimeout(url, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, false, nil
	case http.StatusPartialContent:
		return resp.Body, true, nil
	default:
		resp.Body.Close()
		return nil, false, domain.NewHTTPFailure(url, resp.StatusCode, nil)
	}
}

// IsRetryable implements spec §4.6's escalation policy, with the 408/429
// supplement from SPEC_FULL.md.
func IsRetryable(err error) bool {
	var derr *domain.Error
	if e, ok := err.(*domain.Error); ok {
		derr = e
	} else {
		return false
	}
	switch derr.Kind {
	case domain.ErrKindNetworkTimeout:
		return true
	case domain.ErrKindHTTPFailure:
		sc := derr.StatusCode
		return sc >= 500 || sc == http.StatusRequestTimeout || sc == http.StatusTooManyRequests
	default:
		return false
	}
}
