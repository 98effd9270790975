package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"
)

const (
	apiInitiateTransaction = "/theia/api/v1/initiateTransaction"
	apiVersion             = "v1"
	requestTypePayment     = "Payment"
	currencyINR            = "INR"
	defaultCustomerID      = "CUST001"
	resultStatusSuccess    = "S"
	websiteDefault         = "DEFAULT"
	channelWeb             = "WEB"
	channelWAP             = "WAP"
	industryRetail         = "Retail"
	headerContentType      = "Content-Type"
	contentTypeJSON        = "application/json"
)

const (
	logFmtTrial       = "Payment gateway trial %d/%d for order %s: website=%s channel=%s"
	logFmtTrialFailed = "Payment gateway trial %d for order %s failed: %s - %s"
	logFmtTrialError  = "Payment gateway connection error on trial %d for order %s: %v"
)

// ErrGatewayRejected is returned when every initiation attempt fails.
var ErrGatewayRejected = errors.New("payment gateway rejected every initiation attempt")

// Trial is one website and channel combination tried when initiating a transaction.
type Trial struct {
	Website  string
	Channel  string
	Industry string
}

// DefaultTrials returns the combinations tried in order: the configured website on the
// WEB channel, the DEFAULT website, then the configured website on WAP.
func DefaultTrials(website string) []Trial {
	return []Trial{
		{Website: website, Channel: channelWeb, Industry: industryRetail},
		{Website: websiteDefault, Channel: channelWeb, Industry: industryRetail},
		{Website: website, Channel: channelWAP, Industry: industryRetail},
	}
}

// InitiateRequest describes a transaction to open at the gateway.
type InitiateRequest struct {
	OrderID     string
	Amount      string
	CallbackURL string
	CustomerID  string
}

type txnAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type userInfo struct {
	CustID string `json:"custId"`
}

type initiateBody struct {
	RequestType    string    `json:"requestType"`
	MID            string    `json:"mid"`
	WebsiteName    string    `json:"websiteName"`
	OrderID        string    `json:"orderId"`
	CallbackURL    string    `json:"callbackUrl"`
	TxnAmount      txnAmount `json:"txnAmount"`
	UserInfo       userInfo  `json:"userInfo"`
	ChannelID      string    `json:"channelId,omitempty"`
	IndustryTypeID string    `json:"industryTypeId,omitempty"`
}

type requestHead struct {
	MID       string `json:"mid"`
	Signature string `json:"signature"`
	Version   string `json:"version"`
}

type initiatePayload struct {
	Head requestHead  `json:"head"`
	Body initiateBody `json:"body"`
}

// ResultInfo is the gateway's verdict on a request.
type ResultInfo struct {
	ResultStatus string `json:"resultStatus"`
	ResultCode   string `json:"resultCode"`
	ResultMsg    string `json:"resultMsg"`
}

// InitiateResponse is the gateway reply to a transaction initiation.
type InitiateResponse struct {
	Body struct {
		ResultInfo ResultInfo `json:"resultInfo"`
		TxnToken   string     `json:"txnToken"`
	} `json:"body"`
}

// GatewayError carries the last gateway reply when every trial failed.
type GatewayError struct {
	OrderID string
	Last    *InitiateResponse
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("order %s: %v: %v", e.OrderID, ErrGatewayRejected, e.Err)
	}

	info := e.Last.Body.ResultInfo

	return fmt.Sprintf("order %s: %v: last result %s %s", e.OrderID, ErrGatewayRejected, info.ResultCode, info.ResultMsg)
}

// Unwrap lets errors.Is match ErrGatewayRejected and the last transport error.
func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGatewayRejected}
	}

	return []error{ErrGatewayRejected, e.Err}
}

// Gateway initiates transactions at the payment gateway.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	merchantID string
	signer     *Signer
	logger     *logger.Logger
}

// NewGateway creates a gateway client. baseURL is the scheme and host, for example
// "https://securegw-stage.paytm.in". The timeout applies to each attempt.
func NewGateway(baseURL, merchantID string, signer *Signer, timeout time.Duration, log *logger.Logger) *Gateway {
	return &Gateway{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		signer:     signer,
		logger:     log,
	}
}

// Initiate tries each trial in order and returns the transaction token of the first
// one the gateway accepts.
func (g *Gateway) Initiate(ctx context.Context, req InitiateRequest, trials []Trial) (string, error) {
	gatewayErr := &GatewayError{OrderID: req.OrderID}

	for index, trial := range trials {
		g.logger.Info(logFmtTrial, index+1, len(trials), req.OrderID, trial.Website, trial.Channel)

		resp, err := g.initiateOnce(ctx, req, trial)
		if err != nil {
			g.logger.Error(logFmtTrialError, index+1, req.OrderID, err)
			gatewayErr.Err = err

			if ctx.Err() != nil {
				break
			}

			continue
		}

		gatewayErr.Last = resp

		if resp.Body.ResultInfo.ResultStatus == resultStatusSuccess {
			return resp.Body.TxnToken, nil
		}

		g.logger.Warn(logFmtTrialFailed, index+1, req.OrderID,
			resp.Body.ResultInfo.ResultCode, resp.Body.ResultInfo.ResultMsg)
	}

	return "", gatewayErr
}

func (g *Gateway) initiateOnce(ctx context.Context, req InitiateRequest, trial Trial) (*InitiateResponse, error) {
	customerID := req.CustomerID
	if customerID == "" {
		customerID = defaultCustomerID
	}

	body := initiateBody{
		RequestType:    requestTypePayment,
		MID:            g.merchantID,
		WebsiteName:    trial.Website,
		OrderID:        req.OrderID,
		CallbackURL:    req.CallbackURL,
		TxnAmount:      txnAmount{Value: req.Amount, Currency: currencyINR},
		UserInfo:       userInfo{CustID: customerID},
		ChannelID:      trial.Channel,
		IndustryTypeID: trial.Industry,
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiate body: %w", err)
	}

	payload, err := json.Marshal(initiatePayload{
		Head: requestHead{MID: g.merchantID, Signature: g.signer.Sign(bodyJSON), Version: apiVersion},
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiate payload: %w", err)
	}

	query := url.Values{"mid": {g.merchantID}, "orderId": {req.OrderID}}
	endpoint := g.baseURL + apiInitiateTransaction + "?" + query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach payment gateway at %s: %w", g.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned %s: %s", resp.Status, string(raw))
	}

	var initiateResp InitiateResponse

	err = json.Unmarshal(raw, &initiateResp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &initiateResp, nil
}
