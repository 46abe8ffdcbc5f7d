package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/config"
)

// ClickPesaClient integrates the ClickPesa USSD-push API. Authentication is a
// short-lived token generated from the client-id/api-key pair; the token is
// fetched lazily and cached until a request fails with it.
type ClickPesaClient struct {
	cfg    config.GatewayConfig
	client *http.Client

	mu    sync.Mutex
	token string
}

func NewClickPesaClient(cfg config.GatewayConfig) *ClickPesaClient {
	return &ClickPesaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ClickPesaClient) Name() string { return "clickpesa" }

func (c *ClickPesaClient) generateToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/third-parties/generate-token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("client-id", c.cfg.ClientID)
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("clickpesa token generation failed: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("clickpesa token response: %v", err)
	}
	if !result.Success || result.Token == "" {
		return "", fmt.Errorf("clickpesa token generation rejected")
	}

	c.token = result.Token
	log.Printf("ClickPesa token generated successfully")
	return c.token, nil
}

func (c *ClickPesaClient) InitiatePayment(ctx context.Context, account string, amount decimal.Decimal, orderReference string) InitiateResult {
	if !c.cfg.Enabled {
		log.Printf("ClickPesa is disabled, simulating payment for order %s", orderReference)
		return InitiateResult{
			Success:    true,
			Simulated:  true,
			ExternalID: "SIM-" + uuid.New().String(),
			Status:     StatusProcessing,
		}
	}

	token, err := c.generateToken(ctx)
	if err != nil {
		log.Printf("ClickPesa payment error: %v", err)
		return InitiateResult{Success: false, Error: err.Error()}
	}

	phone := NormalizePhone(account)
	payload := map[string]string{
		"amount":         amount.String(),
		"currency":       "TZS",
		"orderReference": orderReference,
		"phoneNumber":    phone,
	}
	body, _ := json.Marshal(payload)

	log.Printf("Initiating ClickPesa payment: orderReference=%s amount=%s phone=%s", orderReference, amount, phone)

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/third-parties/payments/initiate-ussd-push-request", bytes.NewBuffer(body))
	if err != nil {
		return InitiateResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("ClickPesa payment error: %v", err)
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
		log.Printf("ClickPesa payment initiation failed: status %d: %s", resp.StatusCode, string(raw))
		return InitiateResult{Success: false, Error: msg}
	}

	var result struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("ClickPesa payment response decode error: %v", err)
		return InitiateResult{Success: false, Error: "malformed gateway response"}
	}

	log.Printf("ClickPesa payment initiated successfully: id=%s status=%s", result.ID, result.Status)
	return InitiateResult{
		Success:    true,
		ExternalID: result.ID,
		Status:     result.Status,
		Channel:    result.Channel,
	}
}

func (c *ClickPesaClient) CheckStatus(ctx context.Context, reference string) StatusResult {
	if !c.cfg.Enabled {
		return StatusResult{Success: true, Status: StatusSuccess, RawStatus: "success"}
	}

	token, err := c.generateToken(ctx)
	if err != nil {
		log.Printf("ClickPesa status check error: %v", err)
		return StatusResult{Success: false, Error: err.Error()}
	}

	endpoint := c.cfg.BaseURL + "/third-parties/payments/query?orderReference=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return StatusResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Authorization", token)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("ClickPesa status check error: %v", err)
		return StatusResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusResult{Success: false, Error: "failed to check payment status"}
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("ClickPesa status response decode error: %v", err)
		return StatusResult{Success: false, Error: "malformed gateway response"}
	}

	return StatusResult{
		Success:   true,
		Status:    NormalizeStatus(result.Status),
		RawStatus: result.Status,
	}
}

var _ Gateway = (*ClickPesaClient)(nil)
