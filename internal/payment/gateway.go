package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-griya/internal/store"
)

const payPath = "/pg/v1/pay"

// Gateway builds hosted-checkout requests for the upstream payment provider.
// Requests carry a base64-encoded JSON body plus an X-VERIFY checksum derived
// from the salt key.
type Gateway struct {
	MerchantID  string
	SaltKey     string
	SaltIndex   string
	BaseURL     string
	CallbackURL string
	RedirectURL string

	// HTTP, when set, posts the envelope to the provider and the redirect
	// URL comes from its response. Without a client the redirect is
	// synthesised from the transaction id so the flow can run against
	// sandboxes and in tests without a network call.
	HTTP *http.Client
}

// NewHTTPClient builds a traced HTTP client for provider calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

type payRequest struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	MerchantOrderID       string `json:"merchantOrderId"`
	Amount                int64  `json:"amount"`
	MobileNumber          string `json:"mobileNumber,omitempty"`
	CallbackURL           string `json:"callbackUrl"`
	RedirectURL           string `json:"redirectUrl"`
	RedirectMode          string `json:"redirectMode"`
}

// Initiate prepares the hosted-checkout request for an order and returns the
// redirect URL plus the raw request envelope for auditing.
func (g Gateway) Initiate(ctx context.Context, orderID pgtype.UUID, amount decimal.Decimal, transactionID, phone string) (string, []byte, error) {
	if strings.TrimSpace(g.MerchantID) == "" || strings.TrimSpace(g.SaltKey) == "" {
		return "", nil, errors.New("payment gateway not configured")
	}
	if strings.TrimSpace(transactionID) == "" {
		return "", nil, errors.New("transaction id is required")
	}
	if !amount.IsPositive() {
		return "", nil, errors.New("amount must be positive")
	}
	req := payRequest{
		MerchantID:            g.MerchantID,
		MerchantTransactionID: transactionID,
		MerchantOrderID:       store.UUIDString(orderID),
		Amount:                minorUnits(amount),
		MobileNumber:          strings.TrimSpace(phone),
		CallbackURL:           g.CallbackURL,
		RedirectURL:           g.RedirectURL,
		RedirectMode:          "POST",
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return "", nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	xVerify := RequestChecksum(encoded, payPath, g.SaltKey, g.SaltIndex)
	envelope, err := json.Marshal(map[string]string{
		"request": encoded,
		"xVerify": xVerify,
	})
	if err != nil {
		return "", nil, err
	}
	if g.HTTP != nil {
		redirect, err := g.post(ctx, encoded, xVerify)
		if err != nil {
			return "", nil, err
		}
		return redirect, envelope, nil
	}
	redirect := fmt.Sprintf("%s%s/%s", strings.TrimRight(g.BaseURL, "/"), payPath, transactionID)
	return redirect, envelope, nil
}

type payResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (g Gateway) post(ctx context.Context, encoded, xVerify string) (string, error) {
	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(g.BaseURL, "/") + payPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", xVerify)

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	var parsed payResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if !parsed.Success || parsed.Data.InstrumentResponse.RedirectInfo.URL == "" {
		return "", fmt.Errorf("gateway rejected payment: %s", parsed.Code)
	}
	return parsed.Data.InstrumentResponse.RedirectInfo.URL, nil
}

// minorUnits converts a 2dp decimal amount into integer minor units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// RequestChecksum computes the X-VERIFY value for outbound API calls:
// sha256(base64Payload + path + saltKey) followed by "###" and the salt index.
func RequestChecksum(base64Payload, path, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(base64Payload + path + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

// CallbackChecksum computes the expected X-VERIFY value for inbound webhooks:
// sha256(base64Response + saltKey) followed by "###" and the salt index.
func CallbackChecksum(base64Response, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(base64Response + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}
