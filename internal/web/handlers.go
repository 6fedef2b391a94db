package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/statements/internal/cache"
	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/fetch"
	"github.com/JonMunkholm/statements/internal/logging"
	"github.com/JonMunkholm/statements/internal/schemas"
	"github.com/JonMunkholm/statements/internal/store"
)

var (
	errNoFile    = errors.New("no file provided")
	errEmptyFile = errors.New("empty file")
	errNoURL     = errors.New("no file provided: file_url is required")
)

// ----------------------------------------------------------------------------
// Status
// ----------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "ok",
		"message": "Service is running",
	})
}

// healthResponse reports what the server is wired to.
type healthResponse struct {
	Status   string                `json:"status"`
	Runs     core.RunLimiterStatus `json:"runs"`
	Casters  int                   `json:"casters"`
	Schemas  int                   `json:"dynamic_schemas"`
	Database bool                  `json:"database"`
	Cache    bool                  `json:"cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:   "ok",
		Runs:     s.limiter.Status(),
		Casters:  core.CasterCount(),
		Schemas:  s.schemas.Len(),
		Database: s.store != nil,
		Cache:    s.cache != nil,
	})
}

// ----------------------------------------------------------------------------
// Providers
// ----------------------------------------------------------------------------

type fieldInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Aliases []string `json:"aliases,omitempty"`
}

type providerInfo struct {
	Provider string      `json:"provider"`
	Label    string      `json:"label,omitempty"`
	Keys     []string    `json:"keys"`
	Fields   []fieldInfo `json:"fields,omitempty"`
}

// providerList describes every built-in provider and its caster, if any.
func providerList() []providerInfo {
	builtins := core.BuiltinSchemas()
	out := make([]providerInfo, 0, len(builtins))
	for _, b := range builtins {
		info := providerInfo{Provider: b.Name, Keys: b.Keys}
		if def, ok := core.LookupCaster(b.Name); ok {
			info.Label = def.Info.Label
			for _, f := range def.FieldSpecs {
				info.Fields = append(info.Fields, fieldInfo{Name: f.Name, Type: f.Type.String(), Aliases: f.Aliases})
			}
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, providerList())
}

// ----------------------------------------------------------------------------
// Normalize
// ----------------------------------------------------------------------------

// normalizeRequest is one document ready for the pipeline.
type normalizeRequest struct {
	source string
	data   []byte
	extra  []core.SchemaDefinition
	policy core.CastPolicy
}

// cachedResponse is what the response cache stores for a run.
type cachedResponse struct {
	Provider string          `json:"provider"`
	Cast     core.CastStatus `json:"cast_status"`
	Body     json.RawMessage `json:"body"`
}

// handleNormalize accepts a document as the raw request body or as the
// "file" part of a multipart form. Extra schemas come from the "schemas"
// form field or the X-Schemas header.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	req, err := s.readDocument(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.normalize(w, r, req)
}

type urlRequest struct {
	FileURL string          `json:"file_url"`
	Schemas json.RawMessage `json:"schemas,omitempty"`
	Policy  string          `json:"policy,omitempty"`
}

// handleNormalizeURL fetches a document by URL (or local path when allowed)
// and normalizes it.
func (s *Server) handleNormalizeURL(w http.ResponseWriter, r *http.Request) {
	body, err := decodeURLRequest(w, r, s.cfg.Server.MaxBodySize)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	policy, err := s.policyFor(body.Policy)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	extra, err := parseSchemas(body.Schemas)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	data, err := s.fetch(r.Context(), body.FileURL)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	s.normalize(w, r, normalizeRequest{source: body.FileURL, data: data, extra: extra, policy: policy})
}

func (s *Server) normalize(w http.ResponseWriter, r *http.Request, req normalizeRequest) {
	if len(req.data) == 0 {
		s.respondError(w, r, errEmptyFile, http.StatusBadRequest)
		return
	}

	dynamic := s.schemas.Merge(req.extra)
	logger := logging.WithFields(r.Context(), "source", req.source, "policy", string(req.policy))

	var key string
	if s.cache != nil {
		key = cache.Key(req.data, dynamic, string(req.policy))
		if resp, ok := s.cached(r.Context(), key); ok {
			logger.Debug("serving cached result", "provider", resp.Provider)
			writeResult(w, resp, "", "HIT")
			return
		}
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(runContext(r.Context(), r, req.source), s.runTimeout())
	defer cancel()

	start := time.Now()
	result, err := s.pipeline.WithPolicy(req.policy).Run(ctx, req.data, dynamic)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	elapsed := time.Since(start)

	body, err := json.Marshal(result)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("encode result: %w", err), http.StatusInternalServerError)
		return
	}
	resp := cachedResponse{Provider: result.Provider, Cast: result.Cast, Body: body}

	runID := s.recordRun(r.Context(), req.source, result, elapsed)
	if key != "" {
		s.storeCached(r.Context(), key, resp)
	}
	writeResult(w, resp, runID, "MISS")
}

// writeResult writes the normalized array with its run metadata headers.
func writeResult(w http.ResponseWriter, resp cachedResponse, runID, cacheStatus string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Provider", resp.Provider)
	w.Header().Set("X-Cast-Status", string(resp.Cast))
	if runID != "" {
		w.Header().Set("X-Run-Id", runID)
	}
	if cacheStatus != "" {
		w.Header().Set("X-Cache", cacheStatus)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

func (s *Server) cached(ctx context.Context, key string) (cachedResponse, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logging.FromContext(ctx).Warn("cache get failed", "error", err)
		}
		return cachedResponse{}, false
	}
	var resp cachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		logging.FromContext(ctx).Warn("discarding unreadable cache entry", "error", err)
		return cachedResponse{}, false
	}
	return resp, true
}

func (s *Server) storeCached(ctx context.Context, key string, resp cachedResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cfg.Cache.TTL); err != nil {
		logging.FromContext(ctx).Warn("cache set failed", "error", err)
	}
}

// recordRun stores run history when a database is configured. Failures are
// logged and do not fail the request.
func (s *Server) recordRun(ctx context.Context, source string, result *core.Result, elapsed time.Duration) string {
	if s.store == nil {
		return ""
	}
	run, err := s.store.RecordRun(ctx, store.RunFromResult(source, result, elapsed))
	if err != nil {
		logging.FromContext(ctx).Warn("record run failed", "error", err)
		return ""
	}
	return run.ID.String()
}

// ----------------------------------------------------------------------------
// Classify
// ----------------------------------------------------------------------------

type classifyResponse struct {
	Provider string               `json:"provider"`
	Records  core.ClassifiedBatch `json:"records"`
}

// handleClassify tags an already-decoded JSON document without casting.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize))
	if err != nil {
		s.respondError(w, r, bodyError(err), 0)
		return
	}
	extra, err := parseSchemas([]byte(r.Header.Get("X-Schemas")))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	ctx := runContext(r.Context(), r, "")
	provider, batch, err := core.ClassifyJSON(ctx, data, s.schemas.Merge(extra))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if batch == nil {
		batch = core.ClassifiedBatch{}
	}

	w.Header().Set("X-Provider", provider)
	writeJSON(w, classifyResponse{Provider: provider, Records: batch})
}

// ----------------------------------------------------------------------------
// Proxy download
// ----------------------------------------------------------------------------

// handleProxyDownload fetches a URL into the download directory and returns
// the stored file name.
func (s *Server) handleProxyDownload(w http.ResponseWriter, r *http.Request) {
	body, err := decodeURLRequest(w, r, s.cfg.Server.MaxBodySize)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if !fetch.IsURL(body.FileURL) {
		s.respondError(w, r, fmt.Errorf("%w: %q", fetch.ErrUnsupportedScheme, body.FileURL), 0)
		return
	}

	data, err := s.fetch(r.Context(), body.FileURL)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	saved, err := fetch.Save(s.cfg.Fetch.DownloadDir, data)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	logging.FromContext(r.Context()).Info("document saved", "url", body.FileURL, "file", saved.Name, "mime", saved.MIME)
	writeJSON(w, saved)
}

// ----------------------------------------------------------------------------
// Schemas
// ----------------------------------------------------------------------------

type schemaListResponse struct {
	Builtin []core.SchemaDefinition `json:"builtin"`
	Dynamic []core.SchemaDefinition `json:"dynamic"`
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, schemaListResponse{
		Builtin: core.BuiltinSchemas(),
		Dynamic: s.schemas.List(),
	})
}

// handleCreateSchemas adds or replaces dynamic schemas. The body is a JSON
// array of {"name", "keys"} objects.
func (s *Server) handleCreateSchemas(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.respondError(w, r, bodyError(err), 0)
		return
	}
	defs, err := schemas.ParseJSON(data)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if len(defs) == 0 {
		s.respondError(w, r, fmt.Errorf("%w: empty schema list", schemas.ErrInvalid), 0)
		return
	}

	for _, def := range defs {
		if s.store != nil {
			if err := s.store.UpsertSchema(r.Context(), def); err != nil {
				s.respondError(w, r, err, 0)
				return
			}
		}
		s.schemas.Put(def)
	}

	logging.FromContext(r.Context()).Info("schemas saved", "count", len(defs), "persisted", s.store != nil)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(defs)
}

func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	deleted := false
	if s.store != nil {
		ok, err := s.store.DeleteSchema(r.Context(), name)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		deleted = ok
	}
	if s.schemas.Remove(name) {
		deleted = true
	}

	if !deleted {
		respondErrorJSON(w, core.UserMessage{
			Message: fmt.Sprintf("Schema %q does not exist", name),
			Code:    "SCHEMA003",
		}, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------------------------------------------------------------
// Runs
// ----------------------------------------------------------------------------

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, r, store.ErrNotConfigured, 0)
		return
	}
	runs, err := s.store.RecentRuns(r.Context(), parseIntParam(r, "limit", 50))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, runs)
}

// ----------------------------------------------------------------------------
// Request helpers
// ----------------------------------------------------------------------------

// readDocument extracts the document, extra schemas and cast policy from a
// normalize request.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (normalizeRequest, error) {
	policy, err := s.policyFor(r.URL.Query().Get("policy"))
	if err != nil {
		return normalizeRequest{}, badRequest{err}
	}
	req := normalizeRequest{policy: policy, source: r.URL.Query().Get("source")}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var rawSchemas string
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.cfg.Server.MaxBodySize); err != nil {
			return normalizeRequest{}, bodyError(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return normalizeRequest{}, badRequest{errNoFile}
		}
		defer file.Close()

		req.data, err = io.ReadAll(file)
		if err != nil {
			return normalizeRequest{}, bodyError(err)
		}
		if req.source == "" {
			req.source = header.Filename
		}
		rawSchemas = r.FormValue("schemas")
	} else {
		req.data, err = io.ReadAll(r.Body)
		if err != nil {
			return normalizeRequest{}, bodyError(err)
		}
		rawSchemas = r.Header.Get("X-Schemas")
	}

	req.extra, err = parseSchemas([]byte(rawSchemas))
	if err != nil {
		return normalizeRequest{}, err
	}
	return req, nil
}

func decodeURLRequest(w http.ResponseWriter, r *http.Request, max int64) (urlRequest, error) {
	var body urlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, max))
	if err := dec.Decode(&body); err != nil {
		return urlRequest{}, bodyError(fmt.Errorf("%w: %w", core.ErrInvalidDocument, err))
	}
	body.FileURL = strings.TrimSpace(body.FileURL)
	if body.FileURL == "" {
		return urlRequest{}, badRequest{errNoURL}
	}
	return body, nil
}

func (s *Server) fetch(ctx context.Context, location string) ([]byte, error) {
	if s.fetcher == nil {
		return nil, core.ErrNoFetcher
	}
	return s.fetcher.Fetch(ctx, location)
}

// policyFor resolves a request policy, falling back to the pipeline default.
func (s *Server) policyFor(v string) (core.CastPolicy, error) {
	if v == "" {
		return s.pipeline.Policy(), nil
	}
	return core.ParseCastPolicy(v)
}

// parseSchemas decodes an optional JSON schema list supplied with a request.
func parseSchemas(raw []byte) ([]core.SchemaDefinition, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	return schemas.ParseJSON(raw)
}

// bodyError turns an oversized body into fetch.ErrTooLarge so it maps to 413.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit is %d bytes", fetch.ErrTooLarge, maxErr.Limit)
	}
	if errors.Is(err, core.ErrInvalidDocument) {
		return err
	}
	return badRequest{err}
}
