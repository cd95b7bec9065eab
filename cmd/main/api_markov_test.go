package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/Oneliner/pkg/chainstore"
	"github.com/CTAG07/Oneliner/pkg/markov"
)

// setupTestAPI creates a chain store holding a single chain named "greetings"
// and an httptest server exposing the API over it.
func setupTestAPI(t *testing.T) (*httptest.Server, *chainstore.Store) {
	db, err := initDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, chainstore.SetupSchema(db))

	store, err := chainstore.New(db)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	b := markov.NewBuilder()
	for _, line := range []string{"hello , world !!", "hello again ."} {
		require.NoError(t, b.Add(strings.Fields(line)))
	}
	require.NoError(t, store.Save(context.Background(), "greetings", b.Chain()))

	mux := http.NewServeMux()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewMarkovAPI(store, markov.DefaultMaxLength, logger).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func getJSON(t *testing.T, url string, target any) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	return resp.StatusCode
}

func TestAPIHealth(t *testing.T) {
	server, _ := setupTestAPI(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIVersion(t *testing.T) {
	server, _ := setupTestAPI(t)

	var body VersionInfo
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/version", &body))
	assert.Equal(t, Version, body.Version)
}

func TestAPIModels(t *testing.T) {
	server, _ := setupTestAPI(t)

	var list []chainstore.ChainInfo
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "greetings", list[0].Name)
	assert.Equal(t, 6, list[0].Tokens)

	var info chainstore.ChainInfo
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/greetings", &info))
	assert.Equal(t, list[0], info)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/api/models/missing", &errBody))
	assert.NotEmpty(t, errBody["error"])
}

func TestAPIGenerate(t *testing.T) {
	server, _ := setupTestAPI(t)

	var resp GenerateResponse
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/greetings/generate?count=5&seed=3", &resp))
	assert.Equal(t, "greetings", resp.Model)
	require.Len(t, resp.Texts, 5)
	for _, text := range resp.Texts {
		assert.Contains(t, []string{"hello, world!!", "hello again."}, text)
	}

	var again GenerateResponse
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/greetings/generate?count=5&seed=3", &again))
	assert.Equal(t, resp.Texts, again.Texts)

	var single GenerateResponse
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/greetings/generate", &single))
	assert.Len(t, single.Texts, 1)
}

func TestAPIGenerateErrors(t *testing.T) {
	server, _ := setupTestAPI(t)

	testCases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "Unknown model", path: "/api/models/missing/generate", status: http.StatusNotFound},
		{name: "Zero count", path: "/api/models/greetings/generate?count=0", status: http.StatusBadRequest},
		{name: "Count too large", path: "/api/models/greetings/generate?count=1000", status: http.StatusBadRequest},
		{name: "Bad count", path: "/api/models/greetings/generate?count=lots", status: http.StatusBadRequest},
		{name: "Bad seed", path: "/api/models/greetings/generate?seed=-1", status: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, tc.status, getJSON(t, server.URL+tc.path, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPIGenerateSeesReplacedChain(t *testing.T) {
	server, store := setupTestAPI(t)

	var resp GenerateResponse
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/greetings/generate", &resp))

	b := markov.NewBuilder()
	require.NoError(t, b.Add([]string{"brand", "new", "chain"}))
	require.NoError(t, store.Save(context.Background(), "greetings", b.Chain()))

	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/greetings/generate", &resp))
	assert.Equal(t, []string{"brand new chain"}, resp.Texts)
}

func TestAPIGenerateSeesSameShapeReplacement(t *testing.T) {
	server, store := setupTestAPI(t)
	ctx := context.Background()

	save := func(tokens ...string) {
		b := markov.NewBuilder()
		require.NoError(t, b.Add(tokens))
		require.NoError(t, store.Save(ctx, "pair", b.Chain()))
	}

	var resp GenerateResponse
	save("left", "right")
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/pair/generate", &resp))
	assert.Equal(t, []string{"left right"}, resp.Texts)

	// Identical counts and byte size, so only the row version tells them apart.
	save("right", "left")
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/models/pair/generate", &resp))
	assert.Equal(t, []string{"right left"}, resp.Texts)
}
