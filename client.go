package flagpole

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
)

const decideEndpoint = "decide/"

// Client queries feature flags from the Flagpole API. With local evaluation
// enabled, a background poller keeps flag definitions cached and flags are
// evaluated in process; flags that cannot be decided locally fall back to the
// remote decide endpoint. Without local evaluation every call hits the remote
// endpoint directly.
type Client struct {
	projectKey string
	config     config
	client     *resty.Client
	log        *slog.Logger

	cache     *FlagCache
	evaluator *LocalEvaluator
	poller    *FlagPoller
	events    *EventProcessor
}

// remoteFlagsResponse is the decide endpoint's answer for one subject.
type remoteFlagsResponse struct {
	FeatureFlags        map[string]flagengine.FlagValue `json:"featureFlags"`
	FeatureFlagPayloads map[string]json.RawMessage      `json:"featureFlagPayloads"`
}

// NewClient creates a Flagpole client using the provided project API key.
// Panics if options are misconfigured, such as enabling local evaluation
// without a personal API key.
func NewClient(projectKey string, options ...Option) *Client {
	c := &Client{
		projectKey: projectKey,
		config:     defaultConfig(),
		client:     resty.New(),
		log:        slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.config.localEvaluation && c.config.personalAPIKey == "" {
		panic("local evaluation requires a personal API key.")
	}

	c.client.
		SetTimeout(c.config.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", getUserAgent()).
		SetLogger(restySlogLogger{c.log}).
		OnBeforeRequest(newRestyLogRequestMiddleware(c.log)).
		OnAfterResponse(newRestyLogResponseMiddleware(c.log))

	c.cache = NewFlagCache()
	c.evaluator = NewLocalEvaluator(c.cache, c.log)
	c.events = NewEventProcessor(context.Background(), c.client, c.config.baseURL, projectKey, c.config.eventFlushInterval, c.log)

	if c.config.localEvaluation {
		fetcher := newDefinitionsFetcher(c.client, c.config.baseURL, projectKey, c.config.personalAPIKey)
		c.poller = NewFlagPoller(fetcher, c.cache, c.config.pollInterval, c.config.timeout, c.log)
		c.poller.Start()
	}

	return c
}

// GetFeatureFlag returns the evaluated value of a single flag for the
// subject. Locally cached definitions are tried first; a missing flag or an
// inconclusive verdict falls back to the decide endpoint.
func (c *Client) GetFeatureFlag(ctx context.Context, key, distinctID string, properties map[string]interface{}) (flagengine.FlagValue, error) {
	if c.config.localEvaluation {
		value, ok, err := c.evaluator.EvaluateFlag(key, distinctID, properties)
		if err == nil && ok {
			c.events.CaptureFlagCalled(key, distinctID, value)
			return value, nil
		}
		if err != nil {
			c.log.Debug("local evaluation inconclusive, falling back to remote",
				slog.String("flag", key), "error", err)
		}
	}

	flags, err := c.getRemoteFlags(ctx, distinctID, properties)
	if err != nil {
		return flagengine.FlagValue{}, err
	}
	value, ok := flags.FeatureFlags[key]
	if !ok {
		return flagengine.FlagValue{}, ClientError{msg: fmt.Sprintf("flag %q not found", key)}
	}
	c.events.CaptureFlagCalled(key, distinctID, value)
	return value, nil
}

// IsFeatureEnabled reports whether the flag evaluates as enabled for the
// subject. A variant match counts as enabled.
func (c *Client) IsFeatureEnabled(ctx context.Context, key, distinctID string, properties map[string]interface{}) (bool, error) {
	value, err := c.GetFeatureFlag(ctx, key, distinctID, properties)
	if err != nil {
		return false, err
	}
	return value.Enabled(), nil
}

// GetAllFeatureFlags evaluates every known flag for the subject. With local
// evaluation, any flag that is inconclusive locally causes one remote call
// whose results replace the whole local answer, so the caller sees a single
// consistent source.
func (c *Client) GetAllFeatureFlags(ctx context.Context, distinctID string, properties map[string]interface{}) (map[string]flagengine.FlagValue, error) {
	if c.config.localEvaluation {
		results := c.evaluator.EvaluateAllFlags(distinctID, properties)
		flags := make(map[string]flagengine.FlagValue, len(results))
		conclusive := true
		for key, result := range results {
			if result.Err != nil {
				conclusive = false
				break
			}
			flags[key] = result.Value
		}
		if conclusive && len(flags) > 0 {
			return flags, nil
		}
	}

	resp, err := c.getRemoteFlags(ctx, distinctID, properties)
	if err != nil {
		return nil, err
	}
	return resp.FeatureFlags, nil
}

// GetFeatureFlagPayload returns the JSON payload attached to the flag's
// evaluated value, or nil if none is configured.
func (c *Client) GetFeatureFlagPayload(ctx context.Context, key, distinctID string, properties map[string]interface{}) (json.RawMessage, error) {
	if c.config.localEvaluation {
		value, ok, err := c.evaluator.EvaluateFlag(key, distinctID, properties)
		if err == nil && ok {
			payload, _ := c.evaluator.GetFlagPayload(key, value)
			return payload, nil
		}
	}

	resp, err := c.getRemoteFlags(ctx, distinctID, properties)
	if err != nil {
		return nil, err
	}
	if _, ok := resp.FeatureFlags[key]; !ok {
		return nil, ClientError{msg: fmt.Sprintf("flag %q not found", key)}
	}
	return resp.FeatureFlagPayloads[key], nil
}

// Capture queues an analytics event for background delivery.
func (c *Client) Capture(event, distinctID string, properties map[string]interface{}) {
	c.events.Capture(event, distinctID, properties)
}

// Close stops the background poller and flushes any queued events. The client
// must not be used after Close returns.
func (c *Client) Close(ctx context.Context) error {
	if c.poller != nil {
		c.poller.Stop()
	}
	return c.events.Stop(ctx)
}

func (c *Client) getRemoteFlags(ctx context.Context, distinctID string, properties map[string]interface{}) (*remoteFlagsResponse, error) {
	body := map[string]interface{}{
		"api_key":           c.projectKey,
		"distinct_id":       distinctID,
		"person_properties": properties,
	}
	result := new(remoteFlagsResponse)
	resp, err := c.client.NewRequest().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post(c.config.baseURL + decideEndpoint)

	if err != nil {
		return nil, ClientError{msg: fmt.Sprintf("failed to fetch flags: %v", err)}
	}
	if resp.IsError() {
		return nil, APIError{Status: resp.StatusCode(), msg: fmt.Sprintf("decide request returned %s", resp.Status())}
	}
	return result, nil
}
