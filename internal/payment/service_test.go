package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/payment"
	"github.com/book-expert/voice-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMerchantKey = "0123456789abcdef"

type recordedInitiate struct {
	Query string
	Head  map[string]string
	Body  map[string]any
}

// fakeGateway accepts the trial whose index is acceptOn and rejects the others.
type fakeGateway struct {
	mu       sync.Mutex
	acceptOn int
	requests []recordedInitiate
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Head map[string]string `json:"head"`
		Body map[string]any    `json:"body"`
	}

	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	f.requests = append(f.requests, recordedInitiate{Query: r.URL.RawQuery, Head: payload.Head, Body: payload.Body})
	attempt := len(f.requests)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if attempt == f.acceptOn {
		_, _ = w.Write([]byte(`{"body":{"resultInfo":{"resultStatus":"S","resultCode":"0000","resultMsg":"Success"},"txnToken":"token-123"}}`))

		return
	}

	_, _ = w.Write([]byte(`{"body":{"resultInfo":{"resultStatus":"F","resultCode":"501","resultMsg":"System Error"}}}`))
}

func (f *fakeGateway) recorded() []recordedInitiate {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]recordedInitiate(nil), f.requests...)
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

func newTestService(t *testing.T, gatewayURL string) (*payment.Service, *store.Store) {
	t.Helper()

	testStore, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testStore.Close() })

	service := payment.NewService(payment.Settings{
		MerchantID:  "SrctYa0001",
		MerchantKey: testMerchantKey,
		Website:     "WEBSTAGING",
		CallbackURL: "http://localhost:5173/payment/verify",
		GatewayURL:  gatewayURL,
		Timeout:     2 * time.Second,
	}, testStore, testStore, createTestLogger(t))

	return service, testStore
}

func TestCreateOrder_BasicIsImmediate(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, "http://127.0.0.1:1")

	result, err := service.CreateOrder(context.Background(), "user-1", "basic")
	require.NoError(t, err)

	assert.Equal(t, "Plan updated to Basic", result.Message)
	assert.Equal(t, "0", result.Amount)
	require.NotNil(t, result.User)
	assert.Equal(t, "Basic", result.User.Plan)
	assert.Equal(t, "active", result.User.SubscriptionStatus)
	assert.Empty(t, result.TxnToken)
}

func TestCreateOrder_FallsThroughTrials(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{acceptOn: 2}
	server := httptest.NewServer(gateway)
	t.Cleanup(server.Close)

	service, _ := newTestService(t, server.URL)

	result, err := service.CreateOrder(context.Background(), "user-1", "pro")
	require.NoError(t, err)

	assert.Equal(t, "token-123", result.TxnToken)
	assert.Equal(t, "499.00", result.Amount)
	assert.Equal(t, "SrctYa0001", result.MID)
	assert.Regexp(t, `^PY\d{7,9}$`, result.OrderID)

	requests := gateway.recorded()
	require.Len(t, requests, 2)

	first, second := requests[0], requests[1]
	assert.Equal(t, "WEBSTAGING", first.Body["websiteName"])
	assert.Equal(t, "WEB", first.Body["channelId"])
	assert.Equal(t, "DEFAULT", second.Body["websiteName"])
	assert.Equal(t, "Retail", second.Body["industryTypeId"])
	assert.Equal(t, "SrctYa0001", first.Head["mid"])
	assert.Equal(t, "v1", first.Head["version"])
	assert.NotEmpty(t, first.Head["signature"])
	assert.Contains(t, first.Query, "orderId="+result.OrderID)
	assert.Equal(t, map[string]any{"value": "499.00", "currency": "INR"}, first.Body["txnAmount"])
}

func TestCreateOrder_AllTrialsRejected(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{acceptOn: -1}
	server := httptest.NewServer(gateway)
	t.Cleanup(server.Close)

	service, _ := newTestService(t, server.URL)

	_, err := service.CreateOrder(context.Background(), "user-1", "king")
	require.ErrorIs(t, err, payment.ErrGatewayRejected)

	var gatewayErr *payment.GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	require.NotNil(t, gatewayErr.Last)
	assert.Equal(t, "501", gatewayErr.Last.Body.ResultInfo.ResultCode)

	requests := gateway.recorded()
	require.Len(t, requests, 3)
	assert.Equal(t, "WAP", requests[2].Body["channelId"])
}

func TestCreateOrder_Validation(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, "http://127.0.0.1:1")

	_, err := service.CreateOrder(context.Background(), "user-1", "")
	require.ErrorIs(t, err, payment.ErrPlanRequired)

	_, err = service.CreateOrder(context.Background(), "user-1", "platinum")
	require.ErrorIs(t, err, payment.ErrInvalidPlan)

	unconfigured := payment.NewService(payment.Settings{}, nil, nil, createTestLogger(t))
	assert.False(t, unconfigured.Configured())

	_, err = unconfigured.CreateOrder(context.Background(), "user-1", "pro")
	require.ErrorIs(t, err, payment.ErrCredentialsMissing)
}

func signedCallback(params map[string]string) map[string]string {
	signed := map[string]string{}

	for key, value := range params {
		if key != payment.FieldPlan && key != payment.FieldAmount {
			signed[key] = value
		}
	}

	params[payment.ChecksumField] = payment.NewSigner(testMerchantKey).SignParams(signed)

	return params
}

func TestVerify_SuccessUpdatesPlanAndRecordsTransaction(t *testing.T) {
	t.Parallel()

	service, testStore := newTestService(t, "http://127.0.0.1:1")
	ctx := context.Background()

	params := signedCallback(map[string]string{
		payment.FieldPlan:    "pro",
		payment.FieldAmount:  "499.00",
		payment.FieldStatus:  "TXN_SUCCESS",
		payment.FieldOrderID: "PY123456789",
		payment.FieldTxnID:   "TXN-1",
	})

	user, err := service.Verify(ctx, "user-2", params)
	require.NoError(t, err)

	assert.Equal(t, "Pro", user.Plan)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), user.CurrentPeriodEnd, time.Minute)

	history, err := service.History(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "PY123456789", history[0].OrderID)
	assert.Equal(t, "TXN-1", history[0].PaymentID)
	assert.Equal(t, "success", history[0].Status)

	stats, err := testStore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Transactions)
}

func TestVerify_PlanFallsBackToAmount(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, "http://127.0.0.1:1")

	user, err := service.Verify(context.Background(), "user-3", signedCallback(map[string]string{
		payment.FieldAmount: "1499.00",
		payment.FieldStatus: "TXN_SUCCESS",
		payment.FieldTxnID:  "TXN-2",
	}))
	require.NoError(t, err)
	assert.Equal(t, "King", user.Plan)
}

func TestVerify_Rejections(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, "http://127.0.0.1:1")
	ctx := context.Background()

	pending := signedCallback(map[string]string{payment.FieldStatus: "PENDING", payment.FieldTxnID: "T"})

	_, err := service.Verify(ctx, "user-4", pending)
	require.ErrorIs(t, err, payment.ErrPaymentNotCompleted)

	tampered := signedCallback(map[string]string{payment.FieldStatus: "TXN_FAILURE", payment.FieldTxnID: "T"})
	tampered[payment.FieldStatus] = "TXN_SUCCESS"

	_, err = service.Verify(ctx, "user-4", tampered)
	require.ErrorIs(t, err, payment.ErrChecksumMismatch)

	_, err = service.Verify(ctx, "", pending)
	require.ErrorIs(t, err, payment.ErrUserRequired)

	history, err := service.History(ctx, "user-4")
	require.NoError(t, err)
	assert.Empty(t, history)
}
