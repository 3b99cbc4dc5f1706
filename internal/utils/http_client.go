package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient embeds *resty.Client so callers get the full resty API with
// the client-wide defaults applied.
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns an independent client targeting baseURL. A zero
// timeout leaves resty's default (none) in place.
func NewHTTPClient(baseURL string, timeout time.Duration, userAgent string) *HTTPClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}

	return &HTTPClient{Client: c}
}
