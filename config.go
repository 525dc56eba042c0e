package flagpole

import (
	"time"
)

const (
	// Number of seconds to wait for a request to
	// complete before terminating the request.
	DefaultTimeout = 10 * time.Second

	// Default base URL for the API.
	DefaultBaseURL = "https://api.flagpole.io/"

	// How often the local evaluation poller refreshes flag definitions.
	DefaultPollInterval = 30 * time.Second

	// How often buffered events are flushed to the API.
	DefaultEventFlushInterval = 10 * time.Second

	// Maximum number of events sent in a single batch request.
	EventBatchMaxCount = 100
)

// projectKeyHeader carries the project API key on definitions requests.
const projectKeyHeader = "X-Flagpole-Project-Api-Key"

type config struct {
	baseURL            string
	timeout            time.Duration
	localEvaluation    bool
	personalAPIKey     string
	pollInterval       time.Duration
	eventFlushInterval time.Duration
}

func defaultConfig() config {
	return config{
		baseURL:            DefaultBaseURL,
		timeout:            DefaultTimeout,
		pollInterval:       DefaultPollInterval,
		eventFlushInterval: DefaultEventFlushInterval,
	}
}
