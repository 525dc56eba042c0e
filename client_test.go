package flagpole

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagpole-io/flagpole-go-client/fixtures"
)

// flagServer is a fake Flagpole API serving the fixture definitions and
// decide responses, counting requests per endpoint.
type flagServer struct {
	*httptest.Server
	definitionsCalls atomic.Int64
	decideCalls      atomic.Int64
	lastDecideBody   atomic.Value
}

func newFlagServer(t *testing.T) *flagServer {
	fs := &flagServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/feature_flag/local_evaluation/":
			fs.definitionsCalls.Add(1)
			assert.Equal(t, "Bearer "+fixtures.PersonalAPIKey, req.Header.Get("Authorization"))
			assert.Equal(t, fixtures.ProjectAPIKey, req.Header.Get("X-Flagpole-Project-Api-Key"))
			assert.Equal(t, "true", req.URL.Query().Get("send_cohorts"))
			rw.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(rw, fixtures.DefinitionsJson)
		case "/decide/":
			fs.decideCalls.Add(1)
			body, err := io.ReadAll(req.Body)
			assert.NoError(t, err)
			fs.lastDecideBody.Store(string(body))
			rw.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(rw, fixtures.DecideResponseJson)
		case "/batch/":
			rw.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(rw, fixtures.EventBatchResponseJson)
		default:
			t.Errorf("unexpected request to %s", req.URL.Path)
			rw.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *flagServer) baseURL() string {
	return fs.URL + "/"
}

func newLocalClient(t *testing.T, fs *flagServer) *Client {
	client := NewClient(fixtures.ProjectAPIKey,
		WithBaseURL(fs.baseURL()),
		WithLocalEvaluation(fixtures.PersonalAPIKey),
	)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func newRemoteClient(t *testing.T, fs *flagServer) *Client {
	client := NewClient(fixtures.ProjectAPIKey, WithBaseURL(fs.baseURL()))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestNewClientPanicsWhenLocalEvaluationHasNoPersonalKey(t *testing.T) {
	assert.Panics(t, func() {
		NewClient(fixtures.ProjectAPIKey, WithLocalEvaluation(""))
	})
}

func TestLocalEvaluationStartsPollerAndWarmsCache(t *testing.T) {
	fs := newFlagServer(t)

	client := newLocalClient(t, fs)

	assert.Equal(t, int64(1), fs.definitionsCalls.Load())
	assert.True(t, client.poller.IsRunning())
	assert.Equal(t, 6, client.cache.Len())
}

func TestGetFeatureFlagLocally(t *testing.T) {
	fs := newFlagServer(t)
	client := newLocalClient(t, fs)

	value, err := client.GetFeatureFlag(context.Background(), "simple-flag", "user-1", nil)

	require.NoError(t, err)
	assert.True(t, value.Enabled())
	assert.Equal(t, int64(0), fs.decideCalls.Load(), "a conclusive local verdict needs no remote call")
}

func TestGetFeatureFlagFallsBackOnInconclusive(t *testing.T) {
	fs := newFlagServer(t)
	client := newLocalClient(t, fs)

	value, err := client.GetFeatureFlag(context.Background(), "cohort-flag", "user-1", nil)

	require.NoError(t, err)
	assert.True(t, value.Enabled())
	assert.Equal(t, int64(1), fs.decideCalls.Load())
}

func TestGetFeatureFlagFallsBackOnCacheMiss(t *testing.T) {
	fs := newFlagServer(t)
	client := newLocalClient(t, fs)

	value, err := client.GetFeatureFlag(context.Background(), "homepage-experiment", "subject-00", nil)
	require.NoError(t, err)
	variant, ok := value.Variant()
	require.True(t, ok)
	assert.Equal(t, "variant-b", variant)
	assert.Equal(t, int64(0), fs.decideCalls.Load())

	_, err = client.GetFeatureFlag(context.Background(), "brand-new-flag", "user-1", nil)
	assert.Error(t, err, "a flag absent both locally and remotely is an error")
	assert.Equal(t, int64(1), fs.decideCalls.Load(), "an uncached flag goes remote")
}

func TestGetFeatureFlagRemotely(t *testing.T) {
	fs := newFlagServer(t)
	client := newRemoteClient(t, fs)

	value, err := client.GetFeatureFlag(context.Background(), "homepage-experiment", "subject-00", nil)

	require.NoError(t, err)
	variant, ok := value.Variant()
	require.True(t, ok)
	assert.Equal(t, "variant-b", variant)
	assert.Equal(t, int64(0), fs.definitionsCalls.Load(), "remote evaluation never fetches definitions")

	body, _ := fs.lastDecideBody.Load().(string)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, fixtures.ProjectAPIKey, decoded["api_key"])
	assert.Equal(t, "subject-00", decoded["distinct_id"])
}

func TestGetFeatureFlagUnknownKeyRemotely(t *testing.T) {
	fs := newFlagServer(t)
	client := newRemoteClient(t, fs)

	_, err := client.GetFeatureFlag(context.Background(), "no-such-flag", "user-1", nil)

	var clientErr ClientError
	require.ErrorAs(t, err, &clientErr)
}

func TestIsFeatureEnabled(t *testing.T) {
	fs := newFlagServer(t)
	client := newLocalClient(t, fs)

	enabled, err := client.IsFeatureEnabled(context.Background(), "half-rollout", "user-2", nil)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = client.IsFeatureEnabled(context.Background(), "half-rollout", "user-1", nil)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestGetAllFeatureFlagsFallsBackWhenAnyFlagIsInconclusive(t *testing.T) {
	fs := newFlagServer(t)
	client := newLocalClient(t, fs)

	// The fixture set contains a cohort flag that cannot be decided locally,
	// so the whole answer comes from the decide endpoint.
	flags, err := client.GetAllFeatureFlags(context.Background(), "user-1",
		map[string]interface{}{"email": "dev@flagpole.io"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), fs.decideCalls.Load())
	assert.True(t, flags["beta-features"].Enabled())
	variant, ok := flags["homepage-experiment"].Variant()
	require.True(t, ok)
	assert.Equal(t, "variant-b", variant)
}

func TestGetAllFeatureFlagsRemotely(t *testing.T) {
	fs := newFlagServer(t)
	client := newRemoteClient(t, fs)

	flags, err := client.GetAllFeatureFlags(context.Background(), "user-1", nil)

	require.NoError(t, err)
	require.Len(t, flags, 5)
	assert.False(t, flags["half-rollout"].Enabled())
}

func TestGetFeatureFlagPayload(t *testing.T) {
	fs := newFlagServer(t)
	client := newLocalClient(t, fs)

	payload, err := client.GetFeatureFlagPayload(context.Background(), "simple-flag", "user-1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"color": "green"}`, string(payload))
	assert.Equal(t, int64(0), fs.decideCalls.Load())

	payload, err = client.GetFeatureFlagPayload(context.Background(), "homepage-experiment", "subject-00", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"layout": "hero"}`, string(payload))
}

func TestClientCloseStopsWorkers(t *testing.T) {
	fs := newFlagServer(t)
	client := NewClient(fixtures.ProjectAPIKey,
		WithBaseURL(fs.baseURL()),
		WithLocalEvaluation(fixtures.PersonalAPIKey),
	)

	require.NoError(t, client.Close(context.Background()))
	assert.False(t, client.poller.IsRunning())
}
