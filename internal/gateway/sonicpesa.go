package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/config"
)

// SonicPesaClient integrates the SonicPesa mobile-money API. Authentication
// is a static API key/secret header pair.
type SonicPesaClient struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewSonicPesaClient(cfg config.GatewayConfig) *SonicPesaClient {
	return &SonicPesaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SonicPesaClient) Name() string { return "sonicpesa" }

func (c *SonicPesaClient) setHeaders(req *http.Request) {
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-API-SECRET", c.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *SonicPesaClient) InitiatePayment(ctx context.Context, account string, amount decimal.Decimal, orderReference string) InitiateResult {
	phone := NormalizePhone(account)
	channel := ProviderFromPhone(phone)

	if !c.cfg.Enabled {
		log.Printf("SonicPesa is disabled, simulating payment for order %s", orderReference)
		return InitiateResult{
			Success:    true,
			Simulated:  true,
			ExternalID: "SIM-" + uuid.New().String(),
			Status:     StatusProcessing,
			Channel:    channel,
		}
	}

	payload := map[string]any{
		"buyer_email":        "customer@haset.app",
		"buyer_name":         "HASET Patient",
		"buyer_phone":        phone,
		"amount":             amount,
		"currency":           "TZS",
		"external_reference": orderReference,
	}
	body, _ := json.Marshal(payload)

	log.Printf("Initiating SonicPesa payment: orderReference=%s amount=%s phone=%s", orderReference, amount, phone)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/payment/create_order", bytes.NewBuffer(body))
	if err != nil {
		return InitiateResult{Success: false, Error: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("SonicPesa payment error: %v", err)
		return InitiateResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := "Payment initiation failed"
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		log.Printf("SonicPesa payment initiation failed: status %d: %s", resp.StatusCode, string(raw))
		return InitiateResult{Success: false, Error: msg}
	}

	var result struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("SonicPesa payment response decode error: %v", err)
		return InitiateResult{Success: false, Error: "malformed gateway response"}
	}

	externalID := result.TransactionID
	if externalID == "" {
		externalID = orderReference
	}

	log.Printf("SonicPesa payment initiated successfully: id=%s", externalID)
	return InitiateResult{
		Success:    true,
		ExternalID: externalID,
		Status:     StatusProcessing,
		Channel:    channel,
	}
}

func (c *SonicPesaClient) CheckStatus(ctx context.Context, reference string) StatusResult {
	if !c.cfg.Enabled {
		return StatusResult{Success: true, Status: StatusSuccess, RawStatus: "success"}
	}

	endpoint := c.cfg.BaseURL + "/payment/query?transaction_id=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return StatusResult{Success: false, Error: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("SonicPesa status check error: %v", err)
		return StatusResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusResult{Success: false, Error: "failed to check payment status"}
	}

	var result struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("SonicPesa status response decode error: %v", err)
		return StatusResult{Success: false, Error: "malformed gateway response"}
	}

	return StatusResult{
		Success:   true,
		Status:    NormalizeStatus(result.PaymentStatus),
		RawStatus: result.PaymentStatus,
	}
}

var _ Gateway = (*SonicPesaClient)(nil)
