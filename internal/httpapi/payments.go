package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/payment"
)

const (
	msgMissingCredentials = "Server Configuration Error: Missing Paytm Credentials"
	msgPlanRequired       = "Plan is required"
	msgInvalidPlan        = "Invalid plan selected"
	msgGatewayError       = "Paytm Gateway Error (501)"
	msgGatewayHint        = "Gateway failed to respond. Please check if your Staging MID/Key are still active in the Paytm Dashboard."
	msgOrderFailed        = "Failed to create payment order"
	msgPaymentFailed      = "Payment failed or pending"
	msgChecksumMismatch   = "Checksum mismatch"
	msgVerifyFailed       = "Failed to verify payment"
	msgVerified           = "Payment verified successfully"
	msgHistoryFailed      = "Failed to fetch transaction history"
	mimeForm              = "application/x-www-form-urlencoded"
	logFmtPaymentFailed   = "Payment %s failed for user %s: %v"
)

type orderRequest struct {
	Plan string `json:"plan"`
}

type gatewayErrorResponse struct {
	Error   string                    `json:"error"`
	Details string                    `json:"details"`
	Raw     *payment.InitiateResponse `json:"raw,omitempty"`
}

type verifyResponse struct {
	Message string     `json:"message"`
	User    *core.User `json:"user"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := userID(r)

	result, err := s.deps.Payments.CreateOrder(r.Context(), user, req.Plan)
	if err == nil {
		writeJSON(w, http.StatusOK, result)

		return
	}

	s.logger.Error(logFmtPaymentFailed, "order", user, err)

	var gatewayErr *payment.GatewayError

	switch {
	case errors.Is(err, payment.ErrCredentialsMissing):
		writeError(w, http.StatusInternalServerError, msgMissingCredentials, "")
	case errors.Is(err, payment.ErrPlanRequired):
		writeError(w, http.StatusBadRequest, msgPlanRequired, "")
	case errors.Is(err, payment.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, msgInvalidPlan, "")
	case errors.Is(err, payment.ErrUserRequired):
		writeError(w, http.StatusUnauthorized, msgUserRequired, "")
	case errors.As(err, &gatewayErr):
		writeJSON(w, http.StatusInternalServerError, gatewayErrorResponse{
			Error:   msgGatewayError,
			Details: msgGatewayHint,
			Raw:     gatewayErr.Last,
		})
	default:
		writeError(w, http.StatusInternalServerError, msgOrderFailed, err.Error())
	}
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	params, err := callbackParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody, err.Error())

		return
	}

	user := userID(r)

	updated, err := s.deps.Payments.Verify(r.Context(), user, params)
	if err == nil {
		writeJSON(w, http.StatusOK, verifyResponse{Message: msgVerified, User: updated})

		return
	}

	s.logger.Error(logFmtPaymentFailed, "verification", user, err)

	switch {
	case errors.Is(err, payment.ErrPaymentNotCompleted):
		writeError(w, http.StatusBadRequest, msgPaymentFailed, "")
	case errors.Is(err, payment.ErrChecksumMismatch):
		writeError(w, http.StatusBadRequest, msgChecksumMismatch, "")
	case errors.Is(err, payment.ErrUserRequired):
		writeError(w, http.StatusUnauthorized, msgUserRequired, "")
	default:
		writeError(w, http.StatusInternalServerError, msgVerifyFailed, err.Error())
	}
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	user := userID(r)

	history, err := s.deps.Payments.History(r.Context(), user)
	if err != nil {
		s.logger.Error(logFmtPaymentFailed, "history", user, err)
		writeError(w, http.StatusInternalServerError, msgHistoryFailed, "")

		return
	}

	writeJSON(w, http.StatusOK, history)
}

// callbackParams reads gateway callback fields from a form post or a JSON object.
// JSON numbers and booleans are kept in their literal form.
func callbackParams(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == mimeForm {
		err := r.ParseForm()
		if err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}

		params := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			params[key] = r.PostForm.Get(key)
		}

		return params, nil
	}

	var raw map[string]json.RawMessage

	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode callback: %w", err)
	}

	params := make(map[string]string, len(raw))

	for key, value := range raw {
		var text string
		if json.Unmarshal(value, &text) == nil {
			params[key] = text

			continue
		}

		var number json.Number
		if json.Unmarshal(value, &number) == nil {
			params[key] = number.String()

			continue
		}

		var flag bool
		if json.Unmarshal(value, &flag) == nil {
			params[key] = strconv.FormatBool(flag)
		}
	}

	return params, nil
}
