package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-griya/internal/store"
)

func testGateway() Gateway {
	return Gateway{
		MerchantID:  "MERCHANT1",
		SaltKey:     "salt-key",
		SaltIndex:   "1",
		BaseURL:     "https://pay.example.com",
		CallbackURL: "https://shop.example.com/api/v1/webhooks/payment",
		RedirectURL: "https://shop.example.com/orders",
	}
}

func TestInitiateBuildsSignedEnvelope(t *testing.T) {
	g := testGateway()
	orderID := store.UUID(uuid.New())

	redirect, envelope, err := g.Initiate(context.Background(), orderID, decimal.NewFromFloat(125.50), "TXN-ORD-1", "0811223344")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if redirect != "https://pay.example.com/pg/v1/pay/TXN-ORD-1" {
		t.Fatalf("unexpected redirect %q", redirect)
	}

	var wrapper struct {
		Request string `json:"request"`
		XVerify string `json:"xVerify"`
	}
	if err := json.Unmarshal(envelope, &wrapper); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if got := RequestChecksum(wrapper.Request, "/pg/v1/pay", g.SaltKey, g.SaltIndex); got != wrapper.XVerify {
		t.Fatalf("checksum mismatch: %s vs %s", got, wrapper.XVerify)
	}

	raw, err := base64.StdEncoding.DecodeString(wrapper.Request)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	var req payRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode pay request: %v", err)
	}
	if req.Amount != 12550 {
		t.Fatalf("expected amount in minor units 12550, got %d", req.Amount)
	}
	if req.MerchantTransactionID != "TXN-ORD-1" {
		t.Fatalf("unexpected transaction id %q", req.MerchantTransactionID)
	}
	if req.MerchantOrderID != store.UUIDString(orderID) {
		t.Fatalf("unexpected order id %q", req.MerchantOrderID)
	}
	if req.RedirectMode != "POST" {
		t.Fatalf("unexpected redirect mode %q", req.RedirectMode)
	}
}

func TestInitiateRejectsBadInput(t *testing.T) {
	g := testGateway()
	orderID := store.UUID(uuid.New())

	if _, _, err := g.Initiate(context.Background(), orderID, decimal.NewFromInt(100), "", ""); err == nil {
		t.Fatal("expected error for missing transaction id")
	}
	if _, _, err := g.Initiate(context.Background(), orderID, decimal.Zero, "TXN-1", ""); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
	if _, _, err := (Gateway{}).Initiate(context.Background(), orderID, decimal.NewFromInt(1), "TXN-1", ""); err == nil {
		t.Fatal("expected error for unconfigured gateway")
	}
}

func TestInitiatePostsWhenClientConfigured(t *testing.T) {
	var gotXVerify string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pg/v1/pay" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotXVerify = r.Header.Get("X-VERIFY")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    "PAYMENT_INITIATED",
			"data": map[string]any{
				"instrumentResponse": map[string]any{
					"redirectInfo": map[string]any{"url": "https://pay.example.com/redirect/abc"},
				},
			},
		})
	}))
	defer srv.Close()

	g := testGateway()
	g.BaseURL = srv.URL
	g.HTTP = srv.Client()

	redirect, _, err := g.Initiate(context.Background(), store.UUID(uuid.New()), decimal.NewFromInt(100), "TXN-2", "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if redirect != "https://pay.example.com/redirect/abc" {
		t.Fatalf("expected provider redirect, got %q", redirect)
	}
	if gotXVerify == "" || !strings.HasSuffix(gotXVerify, "###1") {
		t.Fatalf("expected signed request header, got %q", gotXVerify)
	}
}

func TestChecksumsAreDeterministic(t *testing.T) {
	a := CallbackChecksum("cGF5bG9hZA==", "salt", "2")
	b := CallbackChecksum("cGF5bG9hZA==", "salt", "2")
	if a != b {
		t.Fatal("callback checksum must be deterministic")
	}
	if !strings.HasSuffix(a, "###2") {
		t.Fatalf("expected salt index suffix, got %q", a)
	}
	if CallbackChecksum("cGF5bG9hZA==", "other-salt", "2") == a {
		t.Fatal("different salt keys must produce different checksums")
	}
}
