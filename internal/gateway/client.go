package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/infra"
)

// ChargeRequest carries everything the gateway needs to open a charge.
type ChargeRequest struct {
	OrderRef      string
	Amount        int64
	CustomerName  string
	CustomerEmail string
	Description   string
}

// Charge is the gateway's answer to a charge creation: a one-time token
// for the embedded checkout plus a hosted redirect URL.
type Charge struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// StatusResponse is the gateway's view of a charge, as returned by the
// status query endpoint.
type StatusResponse struct {
	OrderRef          string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
}

// Client abstracts the external payment processor. Implementations carry
// no business logic; status interpretation happens in MapStatus.
type Client interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	QueryStatus(ctx context.Context, orderRef string) (*StatusResponse, error)
}

// Options configures the Midtrans client.
type Options struct {
	ServerKey   string
	SnapBaseURL string
	APIBaseURL  string
	AppURL      string
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// Midtrans talks to the Midtrans Snap and core APIs. The server key is
// sent as HTTP basic auth with an empty password, per their scheme.
type Midtrans struct {
	serverKey   string
	snapBaseURL string
	apiBaseURL  string
	appURL      string
	httpClient  *http.Client
	logger      *infra.Logger
}

// NewMidtrans builds a Midtrans client from options, applying sandbox
// defaults for the base URLs.
func NewMidtrans(opts Options) (*Midtrans, error) {
	if strings.TrimSpace(opts.ServerKey) == "" {
		return nil, fmt.Errorf("gateway: server key is required")
	}
	snapBase := strings.TrimRight(opts.SnapBaseURL, "/")
	if snapBase == "" {
		snapBase = "https://app.sandbox.midtrans.com/snap/v1"
	}
	apiBase := strings.TrimRight(opts.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = "https://api.sandbox.midtrans.com/v2"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Midtrans{
		serverKey:   opts.ServerKey,
		snapBaseURL: snapBase,
		apiBaseURL:  apiBase,
		appURL:      strings.TrimRight(opts.AppURL, "/"),
		httpClient:  httpClient,
		logger:      opts.Logger,
	}, nil
}

type snapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapCustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
}

type snapItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type snapCallbacks struct {
	Finish  string `json:"finish,omitempty"`
	Error   string `json:"error,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type snapChargeRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	CustomerDetails    snapCustomerDetails    `json:"customer_details"`
	ItemDetails        []snapItemDetail       `json:"item_details"`
	Callbacks          *snapCallbacks         `json:"callbacks,omitempty"`
}

// CreateCharge opens a Snap charge for the order reference and returns
// the checkout token and redirect URL unmodified.
func (m *Midtrans) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.OrderRef == "" || req.Amount <= 0 {
		return nil, fmt.Errorf("gateway: order ref and positive amount are required")
	}
	payload := snapChargeRequest{
		TransactionDetails: snapTransactionDetails{OrderID: req.OrderRef, GrossAmount: req.Amount},
		CustomerDetails:    snapCustomerDetails{FirstName: req.CustomerName, Email: req.CustomerEmail},
		ItemDetails: []snapItemDetail{{
			ID:       req.OrderRef,
			Price:    req.Amount,
			Quantity: 1,
			Name:     req.Description,
		}},
	}
	if m.appURL != "" {
		payload.Callbacks = &snapCallbacks{
			Finish:  m.appURL + "/dashboard/payment-success",
			Error:   m.appURL + "/dashboard/payment-failed",
			Pending: m.appURL + "/dashboard/payment-pending",
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode charge request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.snapBaseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", m.basicAuth())

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: create charge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if m.logger != nil {
			m.logger.Error().Int("status", resp.StatusCode).Str("order_ref", req.OrderRef).
				Str("body", string(raw)).Msg("gateway: charge creation rejected")
		}
		return nil, fmt.Errorf("gateway: charge creation failed with status %d", resp.StatusCode)
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, fmt.Errorf("gateway: decode charge response: %w", err)
	}
	if charge.Token == "" {
		return nil, fmt.Errorf("gateway: charge response missing token")
	}
	return &charge, nil
}

// QueryStatus fetches the gateway's current view of an order.
func (m *Midtrans) QueryStatus(ctx context.Context, orderRef string) (*StatusResponse, error) {
	if orderRef == "" {
		return nil, fmt.Errorf("gateway: order ref is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiBaseURL+"/"+orderRef+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", m.basicAuth())

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway: query status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("gateway: order %s unknown to gateway", orderRef)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway: status query failed with status %d", resp.StatusCode)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("gateway: decode status response: %w", err)
	}
	return &status, nil
}

func (m *Midtrans) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(m.serverKey+":"))
}

var _ Client = (*Midtrans)(nil)
