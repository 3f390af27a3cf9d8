package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"student-records/internal/db"
	"student-records/internal/httputil"
	"student-records/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// DependencyPostgres is the dependency label used in health metrics.
const DependencyPostgres = "postgres"

// Checker probes the database. db.Check satisfies it.
type Checker func(ctx context.Context, conn bun.IDB, timeout time.Duration) (db.PoolStats, error)

type Handler struct {
	db          bun.IDB
	check       Checker
	timeout     time.Duration
	environment string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewHandler(conn bun.IDB, timeout time.Duration, environment string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.NewMock()
	}
	return &Handler{
		db:          conn,
		check:       db.Check,
		timeout:     timeout,
		environment: environment,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
}

// RegisterAPIRoutes mounts the health check and index under the /api router.
func (h *Handler) RegisterAPIRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/", h.Index)
}

type DatabaseStatus struct {
	Status     string        `json:"status"`
	Pool       *db.PoolStats `json:"pool,omitempty"`
	ErrorClass string        `json:"error_class,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type Response struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	Timestamp   string         `json:"timestamp"`
	Environment string         `json:"environment"`
	Database    DatabaseStatus `json:"database"`
}

// Health reports process liveness plus database reachability. An unreachable
// database yields 503 but never affects the process itself.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats, err := h.check(r.Context(), h.db, h.timeout)
	h.metrics.Health.RecordDependencyCheck(r.Context(), DependencyPostgres, time.Since(start), err)

	resp := Response{
		Success:     true,
		Message:     "Server is running",
		Timestamp:   h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Environment: h.environment,
	}

	if err != nil {
		class, detail := db.ErrorClassQuery, err
		var checkErr *db.CheckError
		if errors.As(err, &checkErr) {
			class, detail = checkErr.Class, checkErr.Err
		}
		h.logger.WarnContext(r.Context(), "database health check failed", "error_class", class, "error", err)

		resp.Success = false
		resp.Message = "Database unavailable"
		resp.Database = DatabaseStatus{
			Status:     "disconnected",
			ErrorClass: class,
			Error:      detail.Error(),
		}
		httputil.RespondWithJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Database = DatabaseStatus{Status: "connected", Pool: &stats}
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "API root",
		"endpoints": []string{"/api/students", "/api/health"},
	})
}
