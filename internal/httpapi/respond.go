package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const (
	msgSomethingWrong   = "Something went wrong!"
	msgUserRequired     = "User id is required"
	msgInvalidBody      = "Invalid request body"
	msgBodyTooLarge     = "Request body too large"
	msgRouteNotFound    = "Route not found"
	msgMethodNotAllowed = "Method not allowed"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	writeJSON(w, code, errorResponse{Error: message, Details: details})
}

// decodeJSON reads a JSON body into v and answers 400 or 413 when it cannot. An empty
// body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge, err.Error())

		return false
	}

	writeError(w, http.StatusBadRequest, msgInvalidBody, err.Error())

	return false
}
