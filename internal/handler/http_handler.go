package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/scriptgen/internal/cache"
	"github.com/gosight/gosight/scriptgen/internal/codegen"
	"github.com/gosight/gosight/scriptgen/internal/enricher"
	"github.com/gosight/gosight/scriptgen/internal/pipeline"
	"github.com/gosight/gosight/scriptgen/internal/processor"
	"github.com/gosight/gosight/scriptgen/internal/recording"
	"github.com/gosight/gosight/scriptgen/internal/storage"
	"github.com/gosight/gosight/scriptgen/internal/validation"
)

type Converter interface {
	Convert(ctx context.Context, data []byte, req pipeline.Request) (*pipeline.Result, error)
}

type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) (string, error)
	CheckRateLimit(ctx context.Context, projectID string) bool
}

type ResultCache interface {
	Get(ctx context.Context, key string) (*cache.Entry, bool)
	Set(ctx context.Context, key string, entry *cache.Entry) error
}

type Recorder interface {
	Record(row storage.ConversionRow)
}

// Options configures request handling
type Options struct {
	DefaultTarget string
	MaxBodyBytes  int64
}

type HTTPHandler struct {
	converter Converter
	validator KeyValidator
	cache     ResultCache
	recorder  Recorder
	enricher  *enricher.Enricher
	opts      Options
}

func NewHTTPHandler(c Converter, v KeyValidator, rc ResultCache, rec Recorder, e *enricher.Enricher, opts Options) *HTTPHandler {
	if opts.DefaultTarget == "" {
		opts.DefaultTarget = string(codegen.TargetPlaywright)
	}
	return &HTTPHandler{
		converter: c,
		validator: v,
		cache:     rc,
		recorder:  rec,
		enricher:  e,
		opts:      opts,
	}
}

type ConvertResponse struct {
	Success      bool     `json:"success"`
	ConversionID string   `json:"conversion_id,omitempty"`
	Script       string   `json:"script,omitempty"`
	StartURL     string   `json:"start_url,omitempty"`
	Target       string   `json:"target,omitempty"`
	ActionCount  int      `json:"action_count"`
	SkippedCount int      `json:"skipped_count"`
	Warnings     []string `json:"warnings,omitempty"`
	Cached       bool     `json:"cached"`
	Error        string   `json:"error,omitempty"`
}

// Routes mounts the conversion API on a chi router
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/convert", h.HandleConvert)
	r.Get("/targets", h.HandleTargets)
	return r
}

// HandleConvert converts the recording in the request body into a script.
// Query parameters: target, name, session_id.
func (h *HTTPHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Validate API key
	projectID, err := h.validator.ValidateAPIKey(ctx, r.Header.Get("X-Project-Key"))
	if err != nil {
		if errors.Is(err, validation.ErrInvalidAPIKey) {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		log.Error().Err(err).Msg("API key lookup failed")
		writeError(w, http.StatusInternalServerError, "API key lookup failed")
		return
	}

	// Rate limiting
	if !h.validator.CheckRateLimit(ctx, projectID) {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	target := r.URL.Query().Get("target")
	if target == "" {
		target = h.opts.DefaultTarget
	}
	t, err := codegen.ParseTarget(target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	testName := r.URL.Query().Get("name")
	sessionID := r.URL.Query().Get("session_id")

	// Read body
	body, err := readBody(w, r, h.opts.MaxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Recording too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	client := h.describeClient(r)
	meta := processor.RowMeta{
		ProjectID: projectID,
		SessionID: sessionID,
		Source:    "http",
		Browser:   client.Browser,
		OS:        client.OS,
		Country:   client.Country,
	}

	key := cache.Key(body, string(t), testName)
	if h.cache != nil {
		if entry, ok := h.cache.Get(ctx, key); ok {
			// each request is its own conversion, even when served from cache
			hit := *entry
			hit.ConversionID = uuid.New().String()
			meta.Cached = true
			h.record(fromEntry(&hit), meta)
			writeJSON(w, http.StatusOK, responseFrom(&hit, true))
			return
		}
	}

	res, err := h.converter.Convert(ctx, body, pipeline.Request{Target: string(t), TestName: testName})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("project_id", projectID).Msg("Conversion failed")
		}
		writeError(w, status, err.Error())
		return
	}

	entry := toEntry(res)
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to cache script")
		}
	}
	h.record(res, meta)

	writeJSON(w, http.StatusOK, responseFrom(entry, false))
}

// HandleTargets lists the registered output targets
func (h *HTTPHandler) HandleTargets(w http.ResponseWriter, r *http.Request) {
	targets := make([]string, 0, len(codegen.Targets()))
	for _, t := range codegen.Targets() {
		targets = append(targets, string(t))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets": targets,
		"default": h.opts.DefaultTarget,
	})
}

func (h *HTTPHandler) describeClient(r *http.Request) enricher.Client {
	if h.enricher == nil {
		return enricher.Client{}
	}
	clientIP := r.Header.Get("X-Real-IP")
	if clientIP == "" {
		clientIP = r.Header.Get("X-Forwarded-For")
	}
	if clientIP == "" {
		clientIP = r.RemoteAddr
	}
	return h.enricher.Describe(r.Header.Get("User-Agent"), clientIP)
}

func (h *HTTPHandler) record(res *pipeline.Result, meta processor.RowMeta) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(processor.NewConversionRow(res, meta))
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	return io.ReadAll(r.Body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, recording.ErrMalformedInput),
		errors.Is(err, recording.ErrMissingSnapshot),
		errors.Is(err, codegen.ErrUnknownTarget):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toEntry(res *pipeline.Result) *cache.Entry {
	return &cache.Entry{
		ConversionID: res.ConversionID,
		Script:       res.Script,
		StartURL:     res.StartURL,
		Target:       string(res.Target),
		EventCount:   res.EventCount,
		ActionCount:  res.ActionCount,
		SkippedCount: res.SkippedCount,
		Warnings:     res.Warnings,
	}
}

func fromEntry(e *cache.Entry) *pipeline.Result {
	return &pipeline.Result{
		ConversionID: e.ConversionID,
		Script:       e.Script,
		StartURL:     e.StartURL,
		Target:       codegen.Target(e.Target),
		EventCount:   e.EventCount,
		ActionCount:  e.ActionCount,
		SkippedCount: e.SkippedCount,
		Warnings:     e.Warnings,
	}
}

func responseFrom(e *cache.Entry, cached bool) ConvertResponse {
	return ConvertResponse{
		Success:      true,
		ConversionID: e.ConversionID,
		Script:       e.Script,
		StartURL:     e.StartURL,
		Target:       e.Target,
		ActionCount:  e.ActionCount,
		SkippedCount: e.SkippedCount,
		Warnings:     e.Warnings,
		Cached:       cached,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ConvertResponse{Success: false, Error: msg})
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Project-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
