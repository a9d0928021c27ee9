package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// Error codes carried in the "error" field of the error envelope.
const (
	codeBadRequest         = "bad_request"
	codeNotFound           = "not_found"
	codeValidation         = "validation_error"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeInternal           = "internal_server_error"
	codeServiceUnavailable = "service_unavailable"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  any    `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes an error envelope. detail may be a string or a structured
// value such as a list of field errors.
func jsonError(w http.ResponseWriter, status int, code, message string, detail any) {
	if detail == nil {
		detail = message
	}
	jsonResponse(w, status, errorBody{Error: code, Message: message, Detail: detail})
}

func badRequest(w http.ResponseWriter, detail string) {
	jsonError(w, http.StatusBadRequest, codeBadRequest, "Bad request", detail)
}

func itemNotFound(w http.ResponseWriter) {
	jsonError(w, http.StatusNotFound, codeNotFound, "Item not found", "Item not found")
}

// internalError logs err with the request context and writes a 500 envelope
// that does not leak it.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	jsonError(w, http.StatusInternalServerError, codeInternal, "An internal server error occurred", nil)
}

// errTrailingData is returned when a body holds more than one JSON value.
var errTrailingData = errors.New("request body must contain a single JSON object")

// decodeJSON decodes a JSON request body into target. Unknown fields are
// ignored; trailing data is rejected.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}
