// Package crawler is the facade in front of the BitQuery GraphQL API
// that produces the raw call-history document the engine's history
// loader consumes. It is deliberately thin: no caching, no pagination
// beyond BitQuery's own `limit`, no retry backoff strategy smarter than
// the original's fixed sleep-and-retry loop.
//
// Grounded verbatim-in-spirit on
// original_source/spcontoolplus/crawler/BitQuery.py's
// main_collecttransaction_history: the same three-query sequence
// (uniq-caller count, uniq-call count, the full call list), the same
// up-to-5-attempts-with-sleep loop, the same 10000 hard cap on
// `limit`, and the same >=50 usability threshold on the uniq-call count.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spcon-go/rolemine/pkg/models"
)

const (
	bitqueryEndpoint = "https://graphql.bitquery.io/"
	maxRetries       = 5
	retrySleep       = 20 * time.Second
	hardLimitCap     = 10000
	minUsableCalls   = 50
)

// Client talks to the BitQuery GraphQL API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string // overridable by tests; defaults to bitqueryEndpoint
}

// NewClient builds a Client. httpClient may be nil to use http.DefaultClient.
func NewClient(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, apiKey: apiKey, endpoint: bitqueryEndpoint}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// graphqlError is returned by runQuery when the endpoint responds with
// a non-200 status, mirroring the Python reference's raised Exception.
type graphqlError struct {
	status int
	body   string
}

func (e *graphqlError) Error() string {
	return fmt.Sprintf("bitquery request failed with status %d: %s", e.status, e.body)
}

func (c *Client) runQuery(ctx context.Context, query string, variables map[string]interface{}) (map[string]json.RawMessage, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := json.Marshal(body)
		return nil, &graphqlError{status: resp.StatusCode, body: string(raw)}
	}
	return body, nil
}

// runQueryWithRetry makes up to maxRetries attempts while the response
// is missing a "data" key, sleeping retrySleep after each such attempt — the
// same loop shape as the Python reference's `while counter<5`.
func (c *Client) runQueryWithRetry(ctx context.Context, query string, variables map[string]interface{}) (map[string]json.RawMessage, error) {
	var last map[string]json.RawMessage
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		last, err = c.runQuery(ctx, query, variables)
		if err != nil {
			return nil, err
		}
		if _, ok := last["data"]; ok {
			return last, nil
		}
		log.Printf("[Crawler] attempt %d/%d returned no data, retrying after %s", attempt+1, maxRetries, retrySleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retrySleep):
		}
	}
	return last, nil
}

const queryUserStatistics = `
query ($network: EthereumNetwork!, $address: String!, $limit: Int, $date: ISO8601DateTime){
  ethereum(network: $network) {
    smartContractCalls(
      options: {limit: $limit}
      smartContractAddress: {is: $address}
      date: {before: $date}
    ) {
      count(uniq: callers)
    }
  }
}`

const queryCallStatistics = `
query ($network: EthereumNetwork!, $address: String!, $limit: Int, $date: ISO8601DateTime){
  ethereum(network: $network) {
    smartContractCalls(
      options: {limit: $limit}
      smartContractAddress: {is: $address}
      date: {before: $date}
    ) {
      count(uniq: calls)
    }
  }
}`

const queryAllCalls = `
query ($network: EthereumNetwork!, $address: String!, $limit: Int, $date: ISO8601DateTime){
  ethereum(network: $network) {
    smartContractCalls(
      options: {limit: $limit}
      smartContractAddress: {is: $address}
      date: {before: $date}
    ) {
      smartContractMethod { name signature signatureHash }
      caller { address }
      success
      count
    }
  }
}`

type countResult struct {
	Data struct {
		Ethereum struct {
			SmartContractCalls []struct {
				Count int64 `json:"count"`
			} `json:"smartContractCalls"`
		} `json:"ethereum"`
	} `json:"data"`
}

// CollectResult is everything FetchHistory retrieved, ready for the
// workspace layer to persist (all_txs.json/user_statistics.json/
// call_statistics.json).
type CollectResult struct {
	AllTxs          models.CallHistoryDocument
	UserStatsRaw    json.RawMessage
	CallStatsRaw    json.RawMessage
	Usable          bool // true iff the limit reached >= minUsableCalls
}

// FetchHistory runs the three-query sequence for one contract address
// and returns the raw call document plus the two statistics documents.
func (c *Client) FetchHistory(ctx context.Context, address, date string) (CollectResult, error) {
	if date == "" || date == "latest" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	variables := map[string]interface{}{
		"limit":   1,
		"network": "ethereum",
		"address": address,
		"date":    date,
	}

	userStatsBody, err := c.runQueryWithRetry(ctx, queryUserStatistics, variables)
	if err != nil {
		return CollectResult{}, fmt.Errorf("user statistics query: %w", err)
	}

	callStatsBody, err := c.runQueryWithRetry(ctx, queryCallStatistics, variables)
	if err != nil {
		return CollectResult{}, fmt.Errorf("call statistics query: %w", err)
	}

	var callStats countResult
	if raw, ok := callStatsBody["data"]; ok {
		if err := json.Unmarshal(raw, &callStats.Data); err != nil {
			return CollectResult{}, fmt.Errorf("decoding call statistics: %w", err)
		}
	}

	limit := 0
	if len(callStats.Data.Ethereum.SmartContractCalls) > 0 {
		limit = int(callStats.Data.Ethereum.SmartContractCalls[0].Count)
	}
	if limit > hardLimitCap {
		limit = hardLimitCap
	}
	variables["limit"] = limit

	allTxsBody, err := c.runQueryWithRetry(ctx, queryAllCalls, variables)
	if err != nil {
		return CollectResult{}, fmt.Errorf("call history query: %w", err)
	}

	var doc models.CallHistoryDocument
	if raw, ok := allTxsBody["data"]; ok {
		wrapped := map[string]json.RawMessage{"data": raw}
		wrappedBytes, _ := json.Marshal(wrapped)
		if err := json.Unmarshal(wrappedBytes, &doc); err != nil {
			return CollectResult{}, fmt.Errorf("decoding call history: %w", err)
		}
	}

	rawUserStats, _ := json.Marshal(userStatsBody)
	rawCallStats, _ := json.Marshal(callStatsBody)

	return CollectResult{
		AllTxs:       doc,
		UserStatsRaw: rawUserStats,
		CallStatsRaw: rawCallStats,
		Usable:       limit >= minUsableCalls,
	}, nil
}
