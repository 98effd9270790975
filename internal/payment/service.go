package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/metrics"
)

// Callback fields and values.
const (
	FieldPlan    = "plan"
	FieldAmount  = "amount"
	FieldStatus  = "STATUS"
	FieldOrderID = "ORDERID"
	FieldTxnID   = "TXNID"

	statusTxnSuccess     = "TXN_SUCCESS"
	statusActive         = "active"
	statusSuccess        = "success"
	subscriptionPeriod   = 30 * 24 * time.Hour
	kingAmountThreshold  = 500
	merchantKeyLength    = 16
	gatewayScheme        = "https://"
	logFmtKeyLength      = "Merchant key length is %d, expected %d"
	logFmtOrderInitiated = "Payment order %s initiated for user %s (%s, %s)"
	logFmtPlanUpdated    = "User %s moved to plan %s"
)

var (
	// ErrCredentialsMissing is returned when the merchant id or key is not configured.
	ErrCredentialsMissing = errors.New("missing payment gateway credentials")
	// ErrUserRequired is returned when a call carries no user id.
	ErrUserRequired = errors.New("user id is required")
	// ErrChecksumMismatch is returned when a callback signature does not verify.
	ErrChecksumMismatch = errors.New("payment checksum mismatch")
	// ErrPaymentNotCompleted is returned for callbacks that do not report success.
	ErrPaymentNotCompleted = errors.New("payment failed or pending")
)

// Settings are the merchant credentials and gateway endpoints of a Service.
type Settings struct {
	MerchantID  string
	MerchantKey string
	Website     string
	CallbackURL string
	GatewayURL  string
	Timeout     time.Duration
}

// SettingsFrom merges the configuration with environment secrets and picks the
// sandbox host for staging merchants.
func SettingsFrom(cfg *config.Config, secrets *config.Secrets) Settings {
	settings := Settings{
		MerchantID:  strings.TrimSpace(secrets.PaymentMerchantID),
		MerchantKey: strings.TrimSpace(secrets.PaymentMerchantKey),
		Website:     cfg.Payment.Website,
		CallbackURL: cfg.Payment.CallbackURL,
		Timeout:     cfg.PaymentTimeout(),
	}

	if website := strings.TrimSpace(secrets.PaymentWebsite); website != "" {
		settings.Website = website
	}

	if callback := strings.TrimSpace(secrets.PaymentCallbackURL); callback != "" {
		settings.CallbackURL = callback
	}

	host := cfg.Payment.GatewayHost
	if config.IsStagingMerchant(settings.MerchantID, settings.Website) {
		host = cfg.Payment.StagingHost
	}

	settings.GatewayURL = gatewayScheme + host

	return settings
}

// OrderResult is the outcome of CreateOrder. Free plans carry the updated user; paid
// plans carry the gateway token the client uses to open the checkout.
type OrderResult struct {
	Message  string     `json:"message,omitempty"`
	User     *core.User `json:"user,omitempty"`
	TxnToken string     `json:"txnToken,omitempty"`
	OrderID  string     `json:"orderId,omitempty"`
	Amount   string     `json:"amount"`
	MID      string     `json:"mid,omitempty"`
}

// Service creates orders, verifies callbacks and lists payment history.
type Service struct {
	settings     Settings
	gateway      *Gateway
	signer       *Signer
	users        core.UserStore
	transactions core.TransactionStore
	clock        func() time.Time
	logger       *logger.Logger
}

// NewService creates a payment service.
func NewService(
	settings Settings,
	users core.UserStore,
	transactions core.TransactionStore,
	log *logger.Logger,
) *Service {
	signer := NewSigner(settings.MerchantKey)

	if settings.MerchantKey != "" && len(settings.MerchantKey) != merchantKeyLength {
		log.Warn(logFmtKeyLength, len(settings.MerchantKey), merchantKeyLength)
	}

	return &Service{
		settings:     settings,
		gateway:      NewGateway(settings.GatewayURL, settings.MerchantID, signer, settings.Timeout, log),
		signer:       signer,
		users:        users,
		transactions: transactions,
		clock:        time.Now,
		logger:       log,
	}
}

// Configured reports whether merchant credentials are present.
func (s *Service) Configured() bool {
	return s.settings.MerchantID != "" && s.settings.MerchantKey != ""
}

// CreateOrder activates a free plan immediately or opens a gateway transaction for a
// paid one.
func (s *Service) CreateOrder(ctx context.Context, userID, planName string) (*OrderResult, error) {
	if !s.Configured() {
		return nil, ErrCredentialsMissing
	}

	plan, err := LookupPlan(planName)
	if err != nil {
		return nil, err
	}

	if userID == "" {
		return nil, ErrUserRequired
	}

	if plan.Free() {
		user, updateErr := s.users.UpdatePlan(ctx, core.User{
			ID:                 userID,
			Plan:               plan.DisplayName,
			SubscriptionStatus: statusActive,
		})
		if updateErr != nil {
			return nil, fmt.Errorf("failed to activate %s plan: %w", plan.Name, updateErr)
		}

		metrics.RecordPaymentOrder(plan.Name, true)

		return &OrderResult{Message: "Plan updated to " + plan.DisplayName, User: user, Amount: plan.Amount}, nil
	}

	orderID := NewOrderID(s.clock())

	token, err := s.gateway.Initiate(ctx, InitiateRequest{
		OrderID:     orderID,
		Amount:      plan.Amount,
		CallbackURL: s.settings.CallbackURL,
	}, DefaultTrials(s.settings.Website))

	metrics.RecordPaymentOrder(plan.Name, err == nil)

	if err != nil {
		return nil, err
	}

	s.logger.Info(logFmtOrderInitiated, orderID, userID, plan.Name, plan.Amount)

	return &OrderResult{TxnToken: token, OrderID: orderID, Amount: plan.Amount, MID: s.settings.MerchantID}, nil
}

// Verify checks a gateway callback and, for a successful payment, moves the user to
// the paid plan for thirty days and records the transaction.
func (s *Service) Verify(ctx context.Context, userID string, params map[string]string) (*core.User, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	signed := make(map[string]string, len(params))

	for key, value := range params {
		if key != FieldPlan && key != FieldAmount {
			signed[key] = value
		}
	}

	if !s.signer.VerifyParams(signed, params[ChecksumField]) {
		return nil, ErrChecksumMismatch
	}

	if params[FieldStatus] != statusTxnSuccess {
		return nil, fmt.Errorf("%w: status %q", ErrPaymentNotCompleted, params[FieldStatus])
	}

	planName := paidPlanName(params[FieldPlan], params[FieldAmount])
	now := s.clock()

	user, err := s.users.UpdatePlan(ctx, core.User{
		ID:                 userID,
		Plan:               planName,
		SubscriptionStatus: statusActive,
		CurrentPeriodEnd:   now.Add(subscriptionPeriod),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	err = s.transactions.CreateTransaction(ctx, core.Transaction{
		BuyerID:       userID,
		TransactionID: params[FieldTxnID],
		Amount:        params[FieldAmount],
		Plan:          params[FieldPlan],
		PaymentID:     params[FieldTxnID],
		OrderID:       params[FieldOrderID],
		Status:        statusSuccess,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	s.logger.Info(logFmtPlanUpdated, userID, planName)

	return user, nil
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]core.Transaction, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	transactions, err := s.transactions.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction history: %w", err)
	}

	return transactions, nil
}

// paidPlanName resolves the plan of a callback. Without a plan name the amount decides:
// above 500 is King, otherwise Pro.
func paidPlanName(name, amount string) string {
	if plan, err := LookupPlan(name); err == nil {
		return plan.DisplayName
	}

	if strings.TrimSpace(name) != "" {
		return name
	}

	value, err := strconv.ParseFloat(amount, 64)
	if err == nil && value > kingAmountThreshold {
		return plans["king"].DisplayName
	}

	return plans["pro"].DisplayName
}
