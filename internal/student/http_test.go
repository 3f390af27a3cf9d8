package student

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"student-records/internal/logger"
	"student-records/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []FieldError    `json:"errors"`
	Count   *int            `json:"count"`
	Error   string          `json:"error"`
}

func setupRouter(t *testing.T) (chi.Router, *memoryRepository) {
	t.Helper()

	repo := newMemoryRepository()
	log := logger.Discard()
	svc := NewService(repo, NoopPublisher(), log, metrics.NewMock())
	handler := NewHandler(svc, newTestValidator(), log, metrics.NewMock())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router, repo
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w, env
}

func decodeStudent(t *testing.T, raw json.RawMessage) Student {
	t.Helper()
	var s Student
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestStudentHandler(t *testing.T) {
	t.Run("Create_Success", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "Student created successfully", env.Message)
		s := decodeStudent(t, env.Data)
		assert.Positive(t, s.ID)
		assert.Equal(t, "jo@x.com", s.Email)
		assert.Nil(t, s.Phone)
	})

	t.Run("Create_MissingFields", func(t *testing.T) {
		router, repo := setupRouter(t)

		w, env := do(t, router, http.MethodPost, "/api/students", `{"phone":"5551234567"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Validation failed", env.Message)
		assert.ElementsMatch(t, []FieldError{
			{Field: "first_name", Message: "First name is required"},
			{Field: "last_name", Message: "Last name is required"},
			{Field: "email", Message: "Email is required"},
		}, env.Errors)
		assert.Zero(t, repo.callCount())
	})

	t.Run("Create_InvalidPhone", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com","phone":"12345"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, env.Errors, 1)
		assert.Equal(t, "phone", env.Errors[0].Field)
	})

	t.Run("Create_DuplicateEmail", func(t *testing.T) {
		router, repo := setupRouter(t)
		body := `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`

		w, _ := do(t, router, http.MethodPost, "/api/students", body)
		require.Equal(t, http.StatusCreated, w.Code)

		w, env := do(t, router, http.MethodPost, "/api/students", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Email already exists", env.Message)
		assert.Len(t, repo.rows, 1)
	})

	t.Run("Create_InvalidBody", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodPost, "/api/students", `[1,2]`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", env.Message)
	})

	t.Run("Create_BodyTooLarge", func(t *testing.T) {
		router, _ := setupRouter(t)

		body := `{"first_name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		w, env := do(t, router, http.MethodPost, "/api/students", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("Create_ThenGet", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodPost, "/api/students",
			`{"first_name":"Ada","last_name":"Lovelace","email":"ada@x.com","phone":"5551234567","date_of_birth":"1990-12-10","address":"London"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		created := decodeStudent(t, env.Data)

		w, env = do(t, router, http.MethodGet, "/api/students/1", "")
		assert.Equal(t, http.StatusOK, w.Code)
		fetched := decodeStudent(t, env.Data)

		assert.Equal(t, created.ID, fetched.ID)
		assert.Equal(t, created.FirstName, fetched.FirstName)
		assert.Equal(t, created.LastName, fetched.LastName)
		assert.Equal(t, created.Email, fetched.Email)
		assert.Equal(t, created.Phone, fetched.Phone)
		assert.True(t, created.DateOfBirth.Equal(*fetched.DateOfBirth))
		assert.Equal(t, created.Address, fetched.Address)
	})

	t.Run("List", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodGet, "/api/students", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, string(env.Data))
		require.NotNil(t, env.Count)
		assert.Equal(t, 0, *env.Count)

		do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`)
		do(t, router, http.MethodPost, "/api/students", `{"first_name":"Al","last_name":"Ng","email":"al@x.com"}`)

		w, env = do(t, router, http.MethodGet, "/api/students", "")
		assert.Equal(t, http.StatusOK, w.Code)
		var students []Student
		require.NoError(t, json.Unmarshal(env.Data, &students))
		require.Len(t, students, 2)
		assert.Equal(t, 2, *env.Count)
		assert.Equal(t, "al@x.com", students[0].Email)
	})

	t.Run("List_Failure", func(t *testing.T) {
		router, repo := setupRouter(t)
		repo.err = errors.New("connection refused")

		w, env := do(t, router, http.MethodGet, "/api/students", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to fetch students", env.Message)
		assert.Equal(t, "Error fetching students: connection refused", env.Error)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodGet, "/api/students/42", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Student not found", env.Message)
	})

	t.Run("InvalidID", func(t *testing.T) {
		router, repo := setupRouter(t)

		for _, path := range []string{"/api/students/abc", "/api/students/0", "/api/students/-3"} {
			w, env := do(t, router, http.MethodGet, path, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, path)
			assert.Equal(t, "Invalid student ID", env.Message)
		}
		w, _ := do(t, router, http.MethodDelete, "/api/students/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, repo.callCount())
	})

	t.Run("Update_Success", func(t *testing.T) {
		router, _ := setupRouter(t)
		do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com","phone":"5551234567"}`)

		w, env := do(t, router, http.MethodPut, "/api/students/1", `{"first_name":"Joanna","last_name":"Lee","email":"jo@x.com"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Student updated successfully", env.Message)
		s := decodeStudent(t, env.Data)
		assert.Equal(t, "Joanna", s.FirstName)
		assert.Nil(t, s.Phone, "omitted optional fields are cleared")
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		router, _ := setupRouter(t)

		w, env := do(t, router, http.MethodPut, "/api/students/999", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Student not found", env.Message)
	})

	t.Run("Update_DuplicateEmail", func(t *testing.T) {
		router, _ := setupRouter(t)
		do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`)
		do(t, router, http.MethodPost, "/api/students", `{"first_name":"Al","last_name":"Ng","email":"al@x.com"}`)

		w, env := do(t, router, http.MethodPut, "/api/students/2", `{"first_name":"Al","last_name":"Ng","email":"jo@x.com"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Email already exists", env.Message)
	})

	t.Run("Update_ValidationBeforeLookup", func(t *testing.T) {
		router, repo := setupRouter(t)

		w, _ := do(t, router, http.MethodPut, "/api/students/999", `{"first_name":"J"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, repo.callCount())
	})

	t.Run("Delete_ThenGet", func(t *testing.T) {
		router, _ := setupRouter(t)
		do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`)

		w, env := do(t, router, http.MethodDelete, "/api/students/1", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Student deleted successfully", env.Message)
		assert.Equal(t, "jo@x.com", decodeStudent(t, env.Data).Email)

		w, _ = do(t, router, http.MethodGet, "/api/students/1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = do(t, router, http.MethodDelete, "/api/students/1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Failure_Returns500WithMessage", func(t *testing.T) {
		router, repo := setupRouter(t)
		repo.err = errors.New("disk full")

		w, env := do(t, router, http.MethodPost, "/api/students", `{"first_name":"Jo","last_name":"Lee","email":"jo@x.com"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Error creating student: disk full", env.Message)
	})
}
