package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/erazemk/barter/internal/model"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, errorBody{Error: message, Code: code})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(code string) int {
	switch code {
	case model.CodeValidation:
		return http.StatusBadRequest
	case model.CodeOwnershipConflict, model.CodeInvalidState:
		return http.StatusConflict
	case model.CodeAuthorization:
		return http.StatusForbidden
	case model.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Domain errors carry their message;
// anything else is logged and hidden behind a generic one.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := model.Kind(err)
	if !model.IsDomain(err) {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, model.CodeInternal, "internal error")
		return
	}
	jsonError(w, statusFor(code), code, err.Error())
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

func badRequest(w http.ResponseWriter, message string) {
	jsonError(w, http.StatusBadRequest, model.CodeValidation, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	jsonError(w, http.StatusUnauthorized, codeUnauthenticated, message)
}

// codeUnauthenticated marks requests without a usable token. It is not a
// domain error kind.
const codeUnauthenticated = "unauthenticated"
