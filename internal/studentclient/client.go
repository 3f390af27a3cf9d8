// Package studentclient is a typed HTTP client for the student records API.
package studentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"student-records/internal/httputil"
	"student-records/internal/student"
)

const defaultTimeout = 10 * time.Second

// APIError is any non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []httputil.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("student api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("student api: status %d: %s", e.StatusCode, e.Message)
}

// Input is the writable part of a student. Nil optional fields are sent as null.
type Input struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`
	Address     *string `json:"address"`
}

// Health is the body of GET /health.
type Health struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Database    struct {
		Status     string `json:"status"`
		ErrorClass string `json:"error_class,omitempty"`
		Error      string `json:"error,omitempty"`
	} `json:"database"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New returns a client for the API served at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool                  `json:"success"`
	Data    json.RawMessage       `json:"data"`
	Message string                `json:"message"`
	Errors  []httputil.FieldError `json:"errors"`
	Count   *int                  `json:"count"`
	Error   string                `json:"error"`
}

func (c *Client) List(ctx context.Context) ([]student.Student, error) {
	var students []student.Student
	if _, err := c.do(ctx, http.MethodGet, "/api/students", nil, &students); err != nil {
		return nil, err
	}
	if students == nil {
		students = []student.Student{}
	}
	return students, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*student.Student, error) {
	var s student.Student
	if _, err := c.do(ctx, http.MethodGet, studentPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Create(ctx context.Context, in Input) (*student.Student, error) {
	var s student.Student
	if _, err := c.do(ctx, http.MethodPost, "/api/students", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Update(ctx context.Context, id int64, in Input) (*student.Student, error) {
	var s student.Student
	if _, err := c.do(ctx, http.MethodPut, studentPath(id), in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes the student and returns the deleted record.
func (c *Client) Delete(ctx context.Context, id int64) (*student.Student, error) {
	var s student.Student
	if _, err := c.do(ctx, http.MethodDelete, studentPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health calls GET /health. A 503 answer is returned as *APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid health response"}
	}
	if resp.StatusCode != http.StatusOK {
		return &h, &APIError{StatusCode: resp.StatusCode, Message: h.Database.Error}
	}
	return &h, nil
}

func studentPath(id int64) string {
	return "/api/students/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "invalid response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}
