package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeBitquery routes each POST body to a canned response based on which
// of the three query strings it contains, mirroring the three-call
// sequence FetchHistory drives.
func fakeBitquery(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "uniq: callers"):
			w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[{"count":3}]}}}`))
		case strings.Contains(req.Query, "uniq: calls"):
			w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[{"count":60}]}}}`))
		default:
			w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[
				{"caller":{"address":"0xCaller"},"count":1,"success":true,
				 "smartContractMethod":{"name":"transfer","signatureHash":"0xa9059cbb"}}
			]}}}`))
		}
	}))
}

func testClient(srv *httptest.Server) *Client {
	return &Client{httpClient: srv.Client(), apiKey: "test", endpoint: srv.URL}
}

func TestFetchHistory_UsableWhenLimitMeetsThreshold(t *testing.T) {
	srv := fakeBitquery(t)
	defer srv.Close()

	c := testClient(srv)

	result, err := c.FetchHistory(context.Background(), "0xContract", "latest")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if !result.Usable {
		t.Fatal("expected Usable=true when call count exceeds the 50-call threshold")
	}
	if len(result.AllTxs.Data.Ethereum.SmartContractCalls) != 1 {
		t.Fatalf("expected one decoded call, got %d", len(result.AllTxs.Data.Ethereum.SmartContractCalls))
	}
}

func TestFetchHistory_DefaultsLatestDateToToday(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if got, _ := req.Variables["date"].(string); got != today {
			t.Errorf("query date = %q, want today %q", got, today)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[]}}}`))
	}))
	defer srv.Close()

	c := testClient(srv)

	if _, err := c.FetchHistory(context.Background(), "0xContract", ""); err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
}

func TestFetchHistory_CapsLimitAtHardCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "uniq: callers"):
			w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[{"count":1}]}}}`))
		case strings.Contains(req.Query, "uniq: calls"):
			w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[{"count":999999}]}}}`))
		default:
			limit, _ := req.Variables["limit"].(float64)
			if int(limit) != hardLimitCap {
				t.Errorf("call-history query limit = %v, want %d", req.Variables["limit"], hardLimitCap)
			}
			w.Write([]byte(`{"data":{"ethereum":{"smartContractCalls":[]}}}`))
		}
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.FetchHistory(context.Background(), "0xContract", "latest"); err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
}
