package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/grading"
	appI18n "github.com/coderDevDev/omr-checker-bubble-sheet/internal/i18n"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/recognizer"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/store"
)

const maxBodyBytes = 20 << 20

var (
	errBadRequest            = errors.New("bad request")
	errRecognizerUnavailable = errors.New("recognizer not configured")
)

// Recognizer reads answer-sheet images. *recognizer.Client implements it.
type Recognizer interface {
	Health(ctx context.Context) (*recognizer.Health, error)
	Process(ctx context.Context, filename string, image []byte) (*recognizer.Recognition, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	rec      Recognizer
	defaults model.Settings
	config   model.ServerConfig
}

// New creates a new Handler. rec may be nil, which disables scanning.
func New(s *store.Store, rec Recognizer, defaults model.Settings, cfg model.ServerConfig) (*Handler, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Handler{store: s, rec: rec, defaults: defaults, config: cfg}, nil
}

// Routes registers all HTTP routes. Mutating routes require the admin
// password when one is configured.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)

		r.Get("/answer-keys", h.handleListAnswerKeys)
		r.Get("/answer-keys/{keyID}", h.handleGetAnswerKey)
		r.Get("/answer-keys/{keyID}/results", h.handleListResults)
		r.Get("/answer-keys/{keyID}/statistics", h.handleStatistics)
		r.Get("/results/{resultID}", h.handleGetResult)
		r.Get("/students", h.handleListStudents)
		r.Get("/students/{studentID}/results", h.handleStudentResults)
		r.Get("/classes", h.handleListClasses)
		r.Get("/classes/{classID}/students", h.handleClassStudents)
		r.Get("/settings", h.handleGetSettings)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/answer-keys", h.handleSaveAnswerKey)
			r.Post("/answer-keys/import", h.handleImportAnswerKeys)
			r.Delete("/answer-keys/{keyID}", h.handleDeleteAnswerKey)
			r.Post("/answer-keys/{keyID}/grade", h.handleGrade)
			r.Post("/answer-keys/{keyID}/grade-batch", h.handleGradeBatch)
			r.Post("/answer-keys/{keyID}/scan", h.handleScan)
			r.Delete("/results/{resultID}", h.handleDeleteResult)
			r.Post("/students", h.handleSaveStudent)
			r.Delete("/students/{studentID}", h.handleDeleteStudent)
			r.Post("/classes", h.handleSaveClass)
			r.Delete("/classes/{classID}", h.handleDeleteClass)
			r.Put("/settings", h.handleSaveSettings)
			r.Get("/export", h.handleExport)
			r.Post("/import", h.handleImport)
		})
	})
}

// engine builds a grading engine from the stored settings.
func (h *Handler) engine() (*grading.Engine, error) {
	settings, err := h.store.GetSettings(h.defaults)
	if err != nil {
		return nil, err
	}
	return grading.NewEngine(settings)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "languages": appI18n.Languages()}
	if h.rec == nil {
		resp["recognizer"] = "disabled"
	} else if health, err := h.rec.Health(r.Context()); err != nil {
		slog.Warn("recognizer health check failed", "error", err)
		resp["recognizer"] = "unavailable"
	} else {
		resp["recognizer"] = health.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

// resultView decorates a stored result with localized display fields.
type resultView struct {
	model.ExamResult
	PerformanceLabel string            `json:"performance_label"`
	PassLabel        string            `json:"pass_label"`
	Comparison       *model.Comparison `json:"comparison,omitempty"`
}

var performanceMessages = map[string]string{
	grading.CategoryExcellent:        "PerformanceExcellent",
	grading.CategoryVeryGood:         "PerformanceVeryGood",
	grading.CategoryGood:             "PerformanceGood",
	grading.CategorySatisfactory:     "PerformanceSatisfactory",
	grading.CategoryPass:             "PerformancePass",
	grading.CategoryNeedsImprovement: "PerformanceNeedsImprovement",
}

func newResultView(ctx context.Context, res model.ExamResult) resultView {
	v := resultView{ExamResult: res, PassLabel: appI18n.T(ctx, "Failed")}
	if res.Passed {
		v.PassLabel = appI18n.T(ctx, "Passed")
	}
	v.PerformanceLabel = res.Performance.Category
	if id, ok := performanceMessages[res.Performance.Category]; ok {
		v.PerformanceLabel = appI18n.T(ctx, id)
	}
	return v
}

// localizeComparison replaces the comparison message with the request's language.
func localizeComparison(ctx context.Context, c model.Comparison, diff float64) model.Comparison {
	data := map[string]any{"Diff": fmt.Sprintf("%.1f", math.Abs(diff))}
	switch c.Status {
	case model.ComparisonAbove:
		c.Message = appI18n.Td(ctx, "ComparisonAbove", data)
	case model.ComparisonBelow:
		c.Message = appI18n.Td(ctx, "ComparisonBelow", data)
	default:
		c.Message = appI18n.T(ctx, "ComparisonEqual")
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

// writeError maps domain errors to HTTP status codes and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := http.StatusInternalServerError, "ErrInternal"
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, msgID = http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, errBadRequest),
		errors.Is(err, grading.ErrInvalidAnswerKey),
		errors.Is(err, grading.ErrInvalidOptions),
		errors.Is(err, model.ErrInvalidSettings),
		errors.Is(err, model.ErrInvalidRecord):
		status, msgID = http.StatusBadRequest, "ErrBadRequest"
	case errors.Is(err, recognizer.ErrProcessing),
		errors.Is(err, errRecognizerUnavailable):
		status, msgID = http.StatusBadGateway, "ErrRecognizer"
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error":  appI18n.T(r.Context(), msgID),
		"detail": err.Error(),
	})
}
