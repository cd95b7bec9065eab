package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"

	"github.com/CTAG07/Oneliner/pkg/chainstore"
	"github.com/CTAG07/Oneliner/pkg/markov"
)

// maxGenerateCount bounds how many oneliners a single request may ask for.
const maxGenerateCount = 100

// MarkovAPI holds the dependencies for the chain API handlers.
type MarkovAPI struct {
	store     *chainstore.Store
	maxLength int
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedGenerator
}

// cachedGenerator remembers which stored row and version a generator was
// decoded from.
type cachedGenerator struct {
	id      int
	version int
	gen     *markov.Generator
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// GenerateResponse is returned by the generate endpoint.
type GenerateResponse struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

// NewMarkovAPI creates a new instance of the MarkovAPI.
func NewMarkovAPI(store *chainstore.Store, maxLength int, logger *slog.Logger) *MarkovAPI {
	return &MarkovAPI{
		store:     store,
		maxLength: maxLength,
		logger:    logger,
		cache:     make(map[string]cachedGenerator),
	}
}

// RegisterRoutes sets up the routing for all /api endpoints.
func (m *MarkovAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", m.handleHealthCheck)
	mux.HandleFunc("GET /api/version", m.handleVersion)
	mux.HandleFunc("GET /api/models", m.handleListModels)
	mux.HandleFunc("GET /api/models/{name}", m.handleModelInfo)
	mux.HandleFunc("GET /api/models/{name}/generate", m.handleGenerate)
}

func (m *MarkovAPI) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *MarkovAPI) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

func (m *MarkovAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	infos, err := m.store.List(r.Context())
	if err != nil {
		m.logger.Error("Failed to list chains", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, infos)
}

func (m *MarkovAPI) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, err := m.store.Info(r.Context(), name)
	if err != nil {
		m.respondWithStoreError(w, name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

// handleGenerate generates ?count= oneliners (default 1) from a stored chain.
// An optional ?seed= makes the response reproducible.
func (m *MarkovAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	query := r.URL.Query()

	count := 1
	if v := query.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxGenerateCount {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxGenerateCount))
			return
		}
		count = n
	}

	opts := []markov.GenerateOption{markov.WithMaxLength(m.maxLength)}
	if v := query.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "seed must be an unsigned integer")
			return
		}
		opts = append(opts, markov.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}

	gen, err := m.generator(r, name)
	if err != nil {
		m.respondWithStoreError(w, name, err)
		return
	}

	texts := make([]string, 0, count)
	for range count {
		text, err := gen.Generate(r.Context(), opts...)
		if err != nil {
			if errors.Is(err, markov.ErrEmptyChain) {
				respondWithError(w, http.StatusUnprocessableEntity, "Model has no start tokens")
				return
			}
			m.logger.Error("Failed to generate", "name", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Generation failed: %v", err))
			return
		}
		texts = append(texts, text)
	}
	respondWithJSON(w, http.StatusOK, GenerateResponse{Model: name, Texts: texts})
}

// generator returns a Generator for the named chain, decoding the snapshot
// only when it changed since it was last cached.
func (m *MarkovAPI) generator(r *http.Request, name string) (*markov.Generator, error) {
	info, err := m.store.Info(r.Context(), name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	cached, ok := m.cache[name]
	m.mu.RUnlock()
	if ok && cached.id == info.Id && cached.version == info.Version {
		return cached.gen, nil
	}

	chain, err := m.store.Load(r.Context(), name)
	if err != nil {
		return nil, err
	}
	gen := markov.NewGenerator(chain, nil)
	gen.SetLogger(m.logger)

	m.mu.Lock()
	m.cache[name] = cachedGenerator{id: info.Id, version: info.Version, gen: gen}
	m.mu.Unlock()

	m.logger.Debug("Chain cached", "name", name, "tokens", chain.Len())
	return gen, nil
}

func (m *MarkovAPI) respondWithStoreError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, chainstore.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Model not found")
		return
	}
	m.logger.Error("Failed to read chain", "name", name, "error", err)
	respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
