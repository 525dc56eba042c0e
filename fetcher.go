package flagpole

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
)

const definitionsEndpoint = "api/feature_flag/local_evaluation/"

// definitionsFetcher fetches flag definitions over HTTP. The personal API key
// authorizes access to raw definitions; the project key selects the project.
type definitionsFetcher struct {
	client      *resty.Client
	baseURL     string
	projectKey  string
	personalKey string
}

func newDefinitionsFetcher(client *resty.Client, baseURL, projectKey, personalKey string) *definitionsFetcher {
	return &definitionsFetcher{
		client:      client,
		baseURL:     baseURL,
		projectKey:  projectKey,
		personalKey: personalKey,
	}
}

func (f *definitionsFetcher) FetchDefinitions(ctx context.Context) (*flagengine.Snapshot, error) {
	snapshot := new(flagengine.Snapshot)
	resp, err := f.client.NewRequest().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+f.personalKey).
		SetHeader(projectKeyHeader, f.projectKey).
		SetQueryParam("send_cohorts", "true").
		SetResult(snapshot).
		Get(f.baseURL + definitionsEndpoint)

	if err != nil {
		return nil, ClientError{msg: fmt.Sprintf("failed to fetch flag definitions: %v", err)}
	}
	if resp.IsError() {
		return nil, APIError{Status: resp.StatusCode(), msg: fmt.Sprintf("definitions request returned %s", resp.Status())}
	}
	return snapshot, nil
}
