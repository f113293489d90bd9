package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferreirogomes/nftmarket/handlers"
	"github.com/ferreirogomes/nftmarket/middleware/ratelimit"
	"github.com/ferreirogomes/nftmarket/services"
	"github.com/ferreirogomes/nftmarket/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts handlers.RouterOptions) *httptest.Server {
	t.Helper()
	return newServerWithGateway(t, services.NewSimulatedGateway(), opts)
}

func newServerWithGateway(t *testing.T, gw services.ChainGateway, opts handlers.RouterOptions) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewStore(storage.MemoryPersister{}, logger)
	svc := services.NewMarketplaceService(store, gw, services.WithLogger(logger))
	opts.Logger = logger

	srv := httptest.NewServer(handlers.NewRouter(svc, opts))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestMarketplaceFlow(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{})

	status, body := do(t, srv, http.MethodPost, "/assets", `{"name":"Genesis","description":"First drop","price":"0.002","maxSupply":30}`)
	require.Equal(t, http.StatusCreated, status)
	asset := body["asset"].(map[string]any)
	id := asset["id"].(string)
	assert.Equal(t, "created", asset["status"])
	assert.Equal(t, "0.002", asset["price"])

	status, body = do(t, srv, http.MethodPost, "/tokenize/"+id, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Deploy contract first!", body["error"])
	assert.Equal(t, "Use POST /deploy-contract endpoint", body["tip"])

	status, body = do(t, srv, http.MethodPost, "/deploy-contract", "")
	require.Equal(t, http.StatusOK, status)
	contract := body["contractAddress"].(string)
	assert.NotEmpty(t, contract)

	status, body = do(t, srv, http.MethodPost, "/tokenize/"+id, `{"initialSupply":15}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 15, body["supply"])
	assert.NotEmpty(t, body["tokenId"])

	status, body = do(t, srv, http.MethodPost, "/tokenize/"+id, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Asset already tokenized", body["error"])

	status, body = do(t, srv, http.MethodPost, "/buy/"+id, `{"buyer":"0xAlice","quantity":3}`)
	require.Equal(t, http.StatusOK, status)
	summary := body["asset"].(map[string]any)
	assert.EqualValues(t, 12, summary["remainingSupply"])
	assert.EqualValues(t, 3, summary["totalSold"])
	assert.Equal(t, "0.006 SOL", body["revenue"])

	status, body = do(t, srv, http.MethodPost, "/buy/"+id, `{"buyer":"0xAlice","quantity":13}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Insufficient supply: requested 13, only 12 available", body["error"])

	status, body = do(t, srv, http.MethodGet, "/assets/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["salesHistory"], 1)
	assert.EqualValues(t, 3, body["totalSold"])

	status, body = do(t, srv, http.MethodGet, "/assets?status=tokenized&sortBy=popular", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["assets"], 1)
	assert.Equal(t, contract, body["contractAddress"])

	status, body = do(t, srv, http.MethodGet, "/sales?buyer=0xalice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["sales"], 1)
	assert.Equal(t, "0.006 SOL", body["totalRevenue"])

	status, body = do(t, srv, http.MethodGet, "/sales/buyer/0xALICE", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "stats")
	stats := body["buyerStats"].(map[string]any)
	assert.EqualValues(t, 1, stats["totalPurchases"])
	assert.EqualValues(t, 3, stats["totalItems"])

	status, body = do(t, srv, http.MethodGet, "/search?q=genesis&priceMax=0.01", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Marketplace running", body["status"])
	health := body["stats"].(map[string]any)
	assert.Equal(t, "Genesis", health["popularAsset"])
	assert.EqualValues(t, 3, health["totalNFTsSold"])
	assert.NotEmpty(t, body["endpoints"])
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{})

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"missing fields", http.MethodPost, "/assets", `{"name":"only"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/assets", `{"name":`, http.StatusBadRequest},
		{"unknown asset", http.MethodGet, "/assets/nope", "", http.StatusNotFound},
		{"tokenize unknown", http.MethodPost, "/tokenize/nope", "", http.StatusBadRequest},
		{"buy unknown", http.MethodPost, "/buy/nope", `{"buyer":"0xB"}`, http.StatusNotFound},
		{"buy without buyer", http.MethodPost, "/buy/nope", `{}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/sales?limit=abc", "", http.StatusBadRequest},
		{"bad price bound", http.MethodGet, "/search?priceMin=cheap", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nowhere", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestBuyBeforeTokenize(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{})

	_, body := do(t, srv, http.MethodPost, "/assets", `{"name":"Later","description":"not minted"}`)
	id := body["asset"].(map[string]any)["id"].(string)

	status, body := do(t, srv, http.MethodPost, "/buy/"+id, `{"buyer":"0xB"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Asset not tokenized yet", body["error"])
	assert.Equal(t, "Use POST /tokenize/"+id+" first", body["tip"])
}

func TestGatewayFailureIsServerError(t *testing.T) {
	gw := services.NewSimulatedGateway()
	srv := newServerWithGateway(t, gw, handlers.RouterOptions{})

	gw.FailNext(errors.New("insufficient funds for rent"))
	status, body := do(t, srv, http.MethodPost, "/deploy-contract", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Insufficient funds for fees", body["error"])
	assert.Contains(t, body["tip"], gw.Address())
	assert.Equal(t, "insufficient funds for rent", body["details"])

	status, _ = do(t, srv, http.MethodPost, "/deploy-contract", "")
	require.Equal(t, http.StatusOK, status)

	_, body = do(t, srv, http.MethodPost, "/assets", `{"name":"A","description":"B"}`)
	id := body["asset"].(map[string]any)["id"].(string)

	gw.FailNext(errors.New("blockhash not found"))
	status, body = do(t, srv, http.MethodPost, "/tokenize/"+id, "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Transaction expired before confirmation", body["error"])

	status, body = do(t, srv, http.MethodGet, "/assets/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "created", body["asset"].(map[string]any)["status"])
}

func TestGasPrice(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{})

	status, body := do(t, srv, http.MethodGet, "/gas-price", "")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Simulated network", body["network"])
	assert.Equal(t, "lamports", body["unit"])
}

func TestRateLimitIgnoresClientIPHeaders(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{Limiter: ratelimit.NewStore(0.001, 1)})

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
		require.NoError(t, err)
		ip := fmt.Sprintf("203.0.113.%d", i+1)
		req.Header.Set("X-Real-IP", ip)
		req.Header.Set("True-Client-IP", ip)
		req.Header.Set("X-Forwarded-For", ip)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, statuses)
}

func TestRateLimitTrustsForwardedForWhenEnabled(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{Limiter: ratelimit.NewStore(0.001, 1), TrustXFF: true})

	get := func(xff string) int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("198.51.100.1"))
	assert.Equal(t, http.StatusOK, get("198.51.100.2"))
}

func TestRateLimitedRouter(t *testing.T) {
	srv := newServer(t, handlers.RouterOptions{Limiter: ratelimit.NewStore(0.001, 1)})

	status, _ := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests", body["error"])
}
