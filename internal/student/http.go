package student

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"student-records/internal/httputil"
	"student-records/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// MaxBodyBytes bounds create/update payloads.
const MaxBodyBytes = 10 << 20

type Handler struct {
	service   Service
	validator *Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewHandler(service Service, validator *Validator, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if validator == nil {
		validator = NewValidator()
	}
	if m == nil {
		m = metrics.NewMock()
	}
	return &Handler{
		service:   service,
		validator: validator,
		logger:    logger,
		metrics:   m,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/students", func(r chi.Router) {
		r.Get("/", h.ListStudents)
		r.Post("/", h.CreateStudent)
		r.Get("/{id}", h.GetStudent)
		r.Put("/{id}", h.UpdateStudent)
		r.Delete("/{id}", h.DeleteStudent)
	})
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "fetching all students")

	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to fetch students", "error", err)
		httputil.RespondWithErrorDetail(w, http.StatusInternalServerError, "Failed to fetch students", err.Error())
		return
	}

	httputil.RespondWithList(w, students, len(students))
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "fetching student", "id", id)
	student, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusOK, student, "")
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := h.decodeStudent(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "creating student", "email", student.Email)
	created, err := h.service.CreateStudent(r.Context(), student)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusCreated, created, "Student created successfully")
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	student, ok := h.decodeStudent(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "updating student", "id", id, "email", student.Email)
	updated, err := h.service.UpdateStudent(r.Context(), id, student)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusOK, updated, "Student updated successfully")
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "deleting student", "id", id)
	deleted, err := h.service.DeleteStudent(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithData(w, http.StatusOK, deleted, "Student deleted successfully")
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return 0, false
	}
	return id, true
}

// decodeStudent reads and validates the body, answering 400/413 itself on failure.
func (h *Handler) decodeStudent(w http.ResponseWriter, r *http.Request) (*Student, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}

	student, err := h.validator.Validate(body)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			errs := make([]httputil.FieldError, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				h.metrics.Students.RecordValidationFailure(r.Context(), fe.Field)
				errs = append(errs, httputil.FieldError{Field: fe.Field, Message: fe.Message})
			}
			h.logger.InfoContext(r.Context(), "student payload rejected", "errors", len(errs))
			httputil.RespondWithValidation(w, errs)
		case errors.Is(err, ErrInvalidBody):
			httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		default:
			h.logger.ErrorContext(r.Context(), "failed to validate payload", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return nil, false
	}
	return student, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidID) {
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	switch KindOf(err) {
	case NotFound:
		h.logger.InfoContext(r.Context(), "student not found")
		httputil.RespondWithError(w, http.StatusNotFound, err.Error())
	case DuplicateEmail:
		h.logger.InfoContext(r.Context(), "duplicate student email")
		httputil.RespondWithError(w, http.StatusConflict, err.Error())
	case Validation:
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "student operation failed", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
