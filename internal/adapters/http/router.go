package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
	"github.com/kirillkom/study-assistant/internal/observability/metrics"
)

const (
	defaultMaxUploadBytes = 64 << 20
	multipartMemory       = 32 << 20
	defaultNoticeLimit    = 20
	defaultFileListLimit  = 50
)

type Config struct {
	Service           string
	MaxUploadBytes    int64
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	BackpressureWait  time.Duration
	EventKeepAlive    time.Duration
}

type Router struct {
	cfg     Config
	queue   ports.UploadQueue
	files   ports.FileReader
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

type RouterOption func(*Router)

// WithFileReader enables the /v1/files routes.
func WithFileReader(files ports.FileReader) RouterOption {
	return func(rt *Router) {
		rt.files = files
	}
}

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(cfg Config, queue ports.UploadQueue, opts ...RouterOption) *Router {
	if cfg.Service == "" {
		cfg.Service = "study-api"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 250 * time.Millisecond
	}
	if cfg.EventKeepAlive <= 0 {
		cfg.EventKeepAlive = 15 * time.Second
	}
	rt := &Router{
		cfg:    cfg,
		queue:  queue,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/uploads", rt.addUploads)
	mux.HandleFunc("GET /v1/uploads", rt.listUploads)
	mux.HandleFunc("GET /v1/uploads/{id}", rt.getUpload)
	mux.HandleFunc("DELETE /v1/uploads/{id}", rt.removeUpload)
	mux.HandleFunc("GET /v1/uploads/{id}/text", rt.getUploadText)
	mux.HandleFunc("GET /v1/session-files", rt.listSessionFiles)
	mux.HandleFunc("GET /v1/notices", rt.listNotices)
	mux.HandleFunc("GET /v1/events", rt.streamEvents)

	if rt.files != nil {
		mux.HandleFunc("GET /v1/files", rt.listFiles)
		mux.HandleFunc("GET /v1/files/{id}/study-pack", rt.getStudyPack)
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.BackpressureWait, rt.onRejected("backpressure"))
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onRejected("rate_limit"))
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(rt.cfg.Service, reason)
		}
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) addUploads(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > rt.cfg.MaxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}

	files := make([]domain.SourceFile, 0, len(headers))
	for _, header := range headers {
		file, err := readPart(header)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		files = append(files, file)
	}

	result, err := rt.queue.Add(r.Context(), files)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnsupportedFormat) {
			writeJSON(w, http.StatusUnsupportedMediaType, result)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func readPart(header *multipart.FileHeader) (domain.SourceFile, error) {
	part, err := header.Open()
	if err != nil {
		return domain.SourceFile{}, err
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return domain.SourceFile{}, err
	}
	return domain.SourceFile{
		Name:         header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
		Data:         data,
	}, nil
}

func (rt *Router) listUploads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": rt.queue.List()})
}

func (rt *Router) getUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	item, err := rt.queue.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (rt *Router) removeUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	if err := rt.queue.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getUploadText(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	text, err := rt.queue.ExtractedText(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (rt *Router) listSessionFiles(w http.ResponseWriter, r *http.Request) {
	files, err := rt.queue.SessionFiles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (rt *Router) listNotices(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, defaultNoticeLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": rt.queue.Notices(limit)})
}

func (rt *Router) listFiles(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, defaultFileListLimit)
	if !ok {
		return
	}
	files, err := rt.files.ListFiles(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (rt *Router) getStudyPack(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	pack, err := rt.files.GetStudyPack(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

func bindID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil || id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return "", false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
