package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"market-analytics-lab/internal/costs"
	"market-analytics-lab/internal/domain"
	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/eventstore/memory"
	"market-analytics-lab/internal/ingestion"
	"market-analytics-lab/internal/querycache"
)

func newTestServer(t *testing.T) (*httptest.Server, *eventstore.Store) {
	t.Helper()
	store := memory.NewStore()
	cache := querycache.New(16)
	eng := engine.New(store, cache, costs.NewEstimator(0, 0, 0), nil)
	srv := httptest.NewServer(New(Options{
		Engine: eng,
		Store:  store,
		Cache:  cache,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func seedBars(t *testing.T, store *eventstore.Store, n int) {
	t.Helper()
	var bars []*domain.PriceBar
	for i := 1; i <= n; i++ {
		c := 100.0 + float64(i)
		bars = append(bars, &domain.PriceBar{
			Symbol: "AAPL",
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i-1),
			Open:   c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000,
		})
	}
	if err := store.Bars.InsertBulk(context.Background(), bars); err != nil {
		t.Fatal(err)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestQueryEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedBars(t, store, 10)

	resp := postJSON(t, srv.URL+"/query", QueryRequest{
		Query: "stock_trend", From: "2024-01-01", To: "2024-01-31",
		Entities: []string{"AAPL"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Query != "stock_trend" || len(body.Rows) != 10 {
		t.Fatalf("response = query %s, %d rows", body.Query, len(body.Rows))
	}
	if body.Columns[0] != "date" || body.Columns[len(body.Columns)-1] != "trend_status" {
		t.Fatalf("columns = %v", body.Columns)
	}
}

func TestQueryEndpointDryRun(t *testing.T) {
	srv, store := newTestServer(t)
	seedBars(t, store, 10)

	resp := postJSON(t, srv.URL+"/query", QueryRequest{
		Query: "stock_trend", From: "2024-01-01", To: "2024-01-31",
		Entities: []string{"AAPL"}, DryRun: true,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var est EstimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		t.Fatal(err)
	}
	if est.RowsScanned == 0 || est.CostUSD <= 0 {
		t.Fatalf("estimate = %+v", est)
	}
}

func TestQueryEndpointErrors(t *testing.T) {
	srv, store := newTestServer(t)
	seedBars(t, store, 10)

	cases := []struct {
		name   string
		req    QueryRequest
		status int
	}{
		{"unknown query", QueryRequest{Query: "made_up", From: "2024-01-01", To: "2024-01-31"}, http.StatusBadRequest},
		{"bad date", QueryRequest{Query: "stock_trend", From: "January 1", To: "2024-01-31"}, http.StatusBadRequest},
		{"inverted range", QueryRequest{Query: "stock_trend", From: "2024-02-01", To: "2024-01-01"}, http.StatusBadRequest},
		{"budget refused", QueryRequest{Query: "stock_trend", From: "2024-01-01", To: "2024-01-31",
			Entities: []string{"AAPL"}, MaxCostUSD: 0.000000000001}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		resp := postJSON(t, srv.URL+"/query", tc.req)
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.name, resp.StatusCode, tc.status)
		}
	}
}

func TestEstimateEndpointNeverRefuses(t *testing.T) {
	srv, store := newTestServer(t)
	seedBars(t, store, 10)

	resp := postJSON(t, srv.URL+"/estimate", QueryRequest{
		Query: "stock_trend", From: "2024-01-01", To: "2024-01-31",
		Entities: []string{"AAPL"}, MaxCostUSD: 0.000000000001,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, estimates must not be budget-gated", resp.StatusCode)
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedBars(t, store, 10)

	before := store.Versions.Combined([]string{"AAPL"})
	resp := postJSON(t, srv.URL+"/invalidate", InvalidateRequest{Entities: []string{"AAPL"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if after := store.Versions.Combined([]string{"AAPL"}); after <= before {
		t.Fatalf("version not bumped: %d -> %d", before, after)
	}

	resp = postJSON(t, srv.URL+"/invalidate", InvalidateRequest{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty invalidate status = %d", resp.StatusCode)
	}
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "running" || len(status.Queries) != len(domain.AllQueries) {
		t.Fatalf("status = %+v", status)
	}
}

func TestIngestEndpointFeedsQueries(t *testing.T) {
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ingest"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := ingestion.Frame{
		Type: "price_bar",
		Bars: []ingestion.WireBar{
			{Symbol: "MSFT", Date: "2024-01-02", Open: 200, High: 210, Low: 195, Close: 205, Volume: 9000},
		},
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatal(err)
	}
	var ack ingestion.Ack
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatal(err)
	}
	if ack.Status != "ok" || ack.Inserted != 1 {
		t.Fatalf("ack = %+v", ack)
	}

	resp := postJSON(t, srv.URL+"/query", QueryRequest{
		Query: "stock_trend", From: "2024-01-01", To: "2024-01-31",
		Entities: []string{"MSFT"},
	})
	defer resp.Body.Close()
	var body QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Rows) != 1 {
		t.Fatalf("rows = %d, want the ingested bar", len(body.Rows))
	}
}
