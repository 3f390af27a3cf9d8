package student

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// payload is the wire shape of a create/update body after per-field decoding.
type payload struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=100"`
	LastName    string `json:"last_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,isodate,notfuture"`
	Address     string `json:"address" validate:"max=500"`
}

// payloadFields lists the accepted keys in reporting order.
var payloadFields = []string{"first_name", "last_name", "email", "phone", "date_of_birth", "address"}

var fieldLabels = map[string]string{
	"first_name":    "First name",
	"last_name":     "Last name",
	"email":         "Email",
	"phone":         "Phone",
	"date_of_birth": "Date of birth",
	"address":       "Address",
}

// Validator checks create/update payloads and normalizes them into a Student.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator() *Validator {
	v := &Validator{
		validate: validator.New(),
		now:      time.Now,
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, ok := parseDate(fl.Field().String())
		return ok
	})
	_ = v.validate.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		d, ok := parseDate(fl.Field().String())
		return ok && !d.After(truncateDate(v.now()))
	})

	return v
}

// Validate decodes raw as a student payload. It returns ErrInvalidBody when raw
// is not a JSON object and a *ValidationError listing every rejected field
// otherwise. Strings are trimmed and empty optional values become nil.
func (v *Validator) Validate(raw []byte) (*Student, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrInvalidBody
	}

	var (
		p        payload
		errs     []FieldError
		rejected = make(map[string]bool)
	)

	targets := map[string]*string{
		"first_name":    &p.FirstName,
		"last_name":     &p.LastName,
		"email":         &p.Email,
		"phone":         &p.Phone,
		"date_of_birth": &p.DateOfBirth,
		"address":       &p.Address,
	}

	for _, name := range payloadFields {
		value, ok := fields[name]
		if !ok {
			continue
		}
		s, err := decodeString(value)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: fieldLabels[name] + " must be a string"})
			rejected[name] = true
			continue
		}
		*targets[name] = s
	}

	if err := v.validate.Struct(&p); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("validate payload: %w", err)
		}
		for _, fe := range validationErrs {
			if rejected[fe.Field()] {
				continue
			}
			errs = append(errs, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
			rejected[fe.Field()] = true
		}
	}

	var unknown []string
	for name := range fields {
		if _, ok := targets[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("%q is not allowed", name)})
	}

	if len(errs) > 0 {
		sortFieldErrors(errs)
		return nil, &ValidationError{Errors: errs}
	}

	s := &Student{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     optional(p.Phone),
		Address:   optional(p.Address),
	}
	if p.DateOfBirth != "" {
		d, _ := parseDate(p.DateOfBirth)
		s.DateOfBirth = &d
	}
	return s, nil
}

// decodeString accepts a JSON string or null. The result is trimmed.
func decodeString(raw json.RawMessage) (string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the UTC
// calendar date at midnight.
func parseDate(s string) (time.Time, bool) {
	if datePattern.MatchString(s) {
		t, err := time.Parse(dateLayout, s)
		return t, err == nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return truncateDate(t), true
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", label, fe.Param())
	case "email":
		return "Please provide a valid email address"
	case "phone":
		return "Phone number must be between 10 and 15 digits"
	case "isodate":
		return "Date of birth must be in YYYY-MM-DD format"
	case "notfuture":
		return "Date of birth cannot be in the future"
	}
	return fmt.Sprintf("%s is invalid", label)
}

// sortFieldErrors orders errors by payload field order, unknown keys last.
func sortFieldErrors(errs []FieldError) {
	rank := func(field string) int {
		for i, name := range payloadFields {
			if name == field {
				return i
			}
		}
		return len(payloadFields)
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return rank(errs[i].Field) < rank(errs[j].Field)
	})
}
