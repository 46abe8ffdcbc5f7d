package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/config"
)

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"success", StatusSuccess},
		{"SUCCESS", StatusSuccess},
		{"Completed", StatusSuccess},
		{"failed", StatusFailed},
		{"CANCELLED", StatusFailed},
		{"pending", StatusProcessing},
		{"processing", StatusProcessing},
		{"something-else", StatusProcessing},
		{"", StatusProcessing},
		{"  completed  ", StatusSuccess},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisabledGatewaySimulatesAcceptance(t *testing.T) {
	t.Parallel()

	clients := []Gateway{
		NewClickPesaClient(config.GatewayConfig{Enabled: false}),
		NewSonicPesaClient(config.GatewayConfig{Enabled: false}),
	}

	for _, gw := range clients {
		res := gw.InitiatePayment(context.Background(), "0712345678", decimal.NewFromInt(1000), "HASET1T1")
		if !res.Success {
			t.Errorf("%s: disabled gateway should simulate success, got error %q", gw.Name(), res.Error)
		}
		if !res.Simulated {
			t.Errorf("%s: expected simulated result", gw.Name())
		}
		if !strings.HasPrefix(res.ExternalID, "SIM-") {
			t.Errorf("%s: expected synthetic external id, got %q", gw.Name(), res.ExternalID)
		}
		if res.Status != StatusProcessing {
			t.Errorf("%s: expected status %s, got %q", gw.Name(), StatusProcessing, res.Status)
		}
	}
}

func TestSonicPesaInitiate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/create_order" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "key" || r.Header.Get("X-API-SECRET") != "secret" {
			t.Errorf("missing auth headers")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["buyer_phone"] != "255712345678" {
			t.Errorf("expected normalized phone, got %v", body["buyer_phone"])
		}
		if body["external_reference"] != "HASET42T100" {
			t.Errorf("expected order reference, got %v", body["external_reference"])
		}

		json.NewEncoder(w).Encode(map[string]string{"transaction_id": "SP-123"})
	}))
	defer srv.Close()

	gw := NewSonicPesaClient(config.GatewayConfig{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
		Enabled:   true,
	})

	res := gw.InitiatePayment(context.Background(), "0712345678", decimal.NewFromInt(1000), "HASET42T100")
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.ExternalID != "SP-123" {
		t.Errorf("expected external id SP-123, got %q", res.ExternalID)
	}
	if res.Channel != "Tigo" {
		t.Errorf("expected channel Tigo for 071 prefix, got %q", res.Channel)
	}
}

func TestSonicPesaInitiateRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "insufficient balance"})
	}))
	defer srv.Close()

	gw := NewSonicPesaClient(config.GatewayConfig{BaseURL: srv.URL, Enabled: true})
	res := gw.InitiatePayment(context.Background(), "0712345678", decimal.NewFromInt(1000), "ref")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "insufficient balance" {
		t.Errorf("expected vendor message, got %q", res.Error)
	}
}

func TestSonicPesaInitiateTransportFailure(t *testing.T) {
	t.Parallel()

	// Point at a closed server so the HTTP call itself fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	gw := NewSonicPesaClient(config.GatewayConfig{BaseURL: srv.URL, Enabled: true})
	res := gw.InitiatePayment(context.Background(), "0712345678", decimal.NewFromInt(1000), "ref")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == "" {
		t.Error("expected error message")
	}
}

func TestSonicPesaCheckStatusFolding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		vendor string
		want   string
	}{
		{"success", StatusSuccess},
		{"COMPLETED", StatusSuccess},
		{"failed", StatusFailed},
		{"cancelled", StatusFailed},
		{"pending", StatusProcessing},
		{"weird", StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("transaction_id"); got != "SP-123" {
					t.Errorf("expected transaction_id SP-123, got %q", got)
				}
				json.NewEncoder(w).Encode(map[string]string{"payment_status": tt.vendor})
			}))
			defer srv.Close()

			gw := NewSonicPesaClient(config.GatewayConfig{BaseURL: srv.URL, Enabled: true})
			res := gw.CheckStatus(context.Background(), "SP-123")
			if !res.Success {
				t.Fatalf("expected success, got error %q", res.Error)
			}
			if res.Status != tt.want {
				t.Errorf("vendor status %q folded to %q, want %q", tt.vendor, res.Status, tt.want)
			}
			if res.RawStatus != tt.vendor {
				t.Errorf("raw status %q not preserved", tt.vendor)
			}
		})
	}
}

func TestClickPesaTokenAndInitiate(t *testing.T) {
	t.Parallel()

	var tokenRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/third-parties/generate-token":
			tokenRequests++
			if r.Header.Get("client-id") != "cid" || r.Header.Get("api-key") != "akey" {
				t.Errorf("missing token credentials")
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true, "token": "tok-1"})
		case "/third-parties/payments/initiate-ussd-push-request":
			if r.Header.Get("Authorization") != "tok-1" {
				t.Errorf("expected token auth, got %q", r.Header.Get("Authorization"))
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["phoneNumber"] != "255712345678" {
				t.Errorf("expected normalized phone, got %q", body["phoneNumber"])
			}
			if body["amount"] != "1500" {
				t.Errorf("expected amount 1500, got %q", body["amount"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "CP-9", "status": "PROCESSING"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	gw := NewClickPesaClient(config.GatewayConfig{
		ClientID: "cid",
		APIKey:   "akey",
		BaseURL:  srv.URL,
		Enabled:  true,
	})

	for i := 0; i < 2; i++ {
		res := gw.InitiatePayment(context.Background(), "0712 345 678", decimal.NewFromInt(1500), "ref")
		if !res.Success {
			t.Fatalf("expected success, got error %q", res.Error)
		}
		if res.ExternalID != "CP-9" {
			t.Errorf("expected external id CP-9, got %q", res.ExternalID)
		}
	}
	if tokenRequests != 1 {
		t.Errorf("expected token to be cached after first request, got %d token calls", tokenRequests)
	}
}

func TestClickPesaMalformedStatusBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/third-parties/generate-token" {
			json.NewEncoder(w).Encode(map[string]any{"success": true, "token": "tok"})
			return
		}
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	gw := NewClickPesaClient(config.GatewayConfig{BaseURL: srv.URL, Enabled: true})
	res := gw.CheckStatus(context.Background(), "ref")
	if res.Success {
		t.Fatal("expected failure on malformed body")
	}
}
