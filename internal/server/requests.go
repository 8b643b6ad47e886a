package server

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// PublishRequest is the body of POST /topics/:name/publish. Payload is passed
// to the topic's decoder as raw JSON.
type PublishRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// PublishResponse acknowledges a publish handed to the bridge.
type PublishResponse struct {
	Status    string `json:"status"`
	Topic     string `json:"topic"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
