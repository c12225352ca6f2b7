package jobquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/shiftalert/internal/model"
)

// DefaultEndpoint is the AppSync GraphQL endpoint serving UK job cards.
const DefaultEndpoint = "https://qy64m4juabaffl7tjakii4gdoa.appsync-api.eu-west-1.amazonaws.com/graphql"

const operationName = "searchJobCardsByLocation"

const searchQuery = `query searchJobCardsByLocation($searchJobRequest: SearchJobRequest!) {
  searchJobCardsByLocation(searchJobRequest: $searchJobRequest) {
    jobCards {
      jobId
      jobTitle
      jobType
      employmentType
      city
      state
      totalPayRateMin
      totalPayRateMax
    }
  }
}`

// maxErrorBody caps how much of a failed response body is kept for logging.
const maxErrorBody = 256

// Ensure Client implements model.JobFetcher.
var _ model.JobFetcher = (*Client)(nil)

// Client issues the fixed job card search against the upstream API.
type Client struct {
	endpoint  string
	authToken string
	timeout   time.Duration
	client    *http.Client
}

// NewClient returns a client for endpoint. timeout bounds each FetchJobs call;
// zero leaves it to the http.Client.
func NewClient(endpoint, authToken string, timeout time.Duration, client *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:  endpoint,
		authToken: authToken,
		timeout:   timeout,
		client:    client,
	}
}

// FetchJobs runs one search and returns the normalized listings. Every failure
// is reported as a *model.FetchError. An empty board is not an error.
func (c *Client) FetchJobs(ctx context.Context) ([]model.JobRecord, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(newSearchRequest())
	if err != nil {
		return nil, &model.FetchError{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &model.FetchError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &model.FetchError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &model.HTTPError{StatusCode: resp.StatusCode}
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if s := strings.TrimSpace(string(excerpt)); s != "" {
			httpErr.Err = errors.New(s)
		}
		// The body stays out of Message so a failing upstream renders the
		// same text every cycle.
		return nil, &model.FetchError{
			Message: fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
			Err:     httpErr,
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &model.FetchError{Message: "decode response: " + err.Error(), Err: err}
	}

	if len(sr.Errors) > 0 {
		msgs := make([]string, 0, len(sr.Errors))
		for _, e := range sr.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) == 0 {
			msgs = append(msgs, "upstream returned errors")
		}
		return nil, &model.FetchError{Message: strings.Join(msgs, "; ")}
	}

	cards := sr.Data.Search.JobCards
	records := make([]model.JobRecord, 0, len(cards))
	for _, card := range cards {
		records = append(records, card.normalize())
	}
	return records, nil
}
