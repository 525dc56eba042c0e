package flagpole

import (
	"log/slog"
	"time"
)

type Option func(c *Client)

var _ = []Option{
	WithBaseURL(""),
	WithLocalEvaluation(""),
	WithRemoteEvaluation(),
	WithRequestTimeout(0),
	WithPollInterval(0),
	WithEventFlushInterval(0),
	WithRetries(3, 1*time.Second),
	WithCustomHeaders(nil),
	WithLogger(nil),
}

func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.baseURL = url
	}
}

// WithLocalEvaluation enables local flag evaluation backed by a background
// definitions poller. The personal API key authorizes access to the raw
// definitions endpoint; NewClient panics if it is empty.
func WithLocalEvaluation(personalAPIKey string) Option {
	return func(c *Client) {
		c.config.localEvaluation = true
		c.config.personalAPIKey = personalAPIKey
	}
}

func WithRemoteEvaluation() Option {
	return func(c *Client) {
		c.config.localEvaluation = false
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.config.timeout = timeout
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.config.pollInterval = interval
	}
}

func WithEventFlushInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.config.eventFlushInterval = interval
	}
}

func WithRetries(count int, waitTime time.Duration) Option {
	return func(c *Client) {
		c.client.SetRetryCount(count)
		c.client.SetRetryWaitTime(waitTime)
	}
}

func WithCustomHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.client.SetHeaders(headers)
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}
