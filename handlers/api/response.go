package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/middleware"
	"github.com/sirupsen/logrus"
)

// Response represents a standardized API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorBody carries the failing stage and debug trail of a pipeline error.
type ErrorBody struct {
	Message    string   `json:"message"`
	Kind       string   `json:"kind,omitempty"`
	Stage      string   `json:"stage,omitempty"`
	DebugTrail []string `json:"debugTrail,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	writeResponse(w, code, Response{
		Success:   code >= 200 && code < 300,
		Data:      payload,
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.HTTPStatus(err)
	body := errorBody(err)

	logrus.WithFields(logrus.Fields{
		"error":      err,
		"status":     code,
		"kind":       body.Kind,
		"stage":      body.Stage,
		"request_id": middleware.GetRequestID(r.Context()),
		"path":       r.URL.Path,
		"method":     r.Method,
	}).Error("Request error")

	writeResponse(w, code, Response{
		Success:   false,
		Error:     body,
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func errorBody(err error) *ErrorBody {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		return &ErrorBody{Message: "Internal server error"}
	}
	return &ErrorBody{
		Message:    appErr.Error(),
		Kind:       string(appErr.Kind),
		Stage:      appErr.Stage,
		DebugTrail: appErr.Trail,
	}
}

func writeResponse(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

func readJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.InvalidInput("readJSON", err, "Invalid JSON format")
	}
	return nil
}
