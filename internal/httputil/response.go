package httputil

import (
	"encoding/json"
	"net/http"
)

// FieldError is one rejected field in a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Count   *int         `json:"count,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response = []byte(`{"success":false,"message":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError writes a failure envelope carrying message.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, Response{Success: false, Message: message})
}

// RespondWithErrorDetail is RespondWithError plus the underlying error text.
func RespondWithErrorDetail(w http.ResponseWriter, code int, message string, detail string) {
	RespondWithJSON(w, code, Response{Success: false, Message: message, Error: detail})
}

func RespondWithValidation(w http.ResponseWriter, errs []FieldError) {
	RespondWithJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// RespondWithData writes a success envelope around data.
func RespondWithData(w http.ResponseWriter, code int, data interface{}, message string) {
	RespondWithJSON(w, code, Response{Success: true, Data: data, Message: message})
}

func RespondWithList(w http.ResponseWriter, data interface{}, count int) {
	RespondWithJSON(w, http.StatusOK, Response{Success: true, Data: data, Count: &count})
}
