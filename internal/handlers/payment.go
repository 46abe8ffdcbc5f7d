package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/services"
	"github.com/DinoTechnologyCenter-DTC/HASET-Backend/internal/storage"
)

type PaymentHandler struct {
	service       *services.PaymentService
	validate      *validator.Validate
	callbackToken string
}

// NewPaymentHandler wires the payment endpoints. callbackToken, when set,
// must match the x-callback-token header on gateway callbacks.
func NewPaymentHandler(service *services.PaymentService, callbackToken string) *PaymentHandler {
	return &PaymentHandler{
		service:       service,
		validate:      validator.New(),
		callbackToken: callbackToken,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

type initiateRequest struct {
	UserID         string          `json:"user_id"`
	DoctorID       string          `json:"doctor_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Provider       string          `json:"provider" validate:"required"`
	PaymentAccount string          `json:"payment_account" validate:"required"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
		return
	}

	resp, err := h.service.Initiate(r.Context(), services.InitiateRequest{
		UserID:         req.UserID,
		DoctorID:       req.DoctorID,
		Amount:         req.Amount,
		Provider:       req.Provider,
		PaymentAccount: req.PaymentAccount,
	})
	if err != nil {
		var dup *services.DuplicateError
		var gw *services.GatewayError
		switch {
		case errors.As(err, &dup):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"status":         "error",
				"message":        "A payment request is already active for this doctor. Please wait for the USSD prompt on your phone.",
				"transaction_id": dup.TransactionID,
			})
		case errors.As(err, &gw):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":         "error",
				"message":        gw.Message,
				"transaction_id": gw.TransactionID,
			})
		case errors.Is(err, services.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
		default:
			log.Printf("Failed to initiate payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "An error occurred while processing payment"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"message":         "Payment initiated successfully. Please check your phone to complete the payment.",
		"transaction_id":  resp.TransactionID,
		"order_reference": resp.OrderReference,
		"gateway_status":  resp.GatewayStatus,
		"payment_channel": resp.PaymentChannel,
	})
}

type callbackRequest struct {
	TransactionID string `json:"transaction_id"`
	PaymentStatus string `json:"payment_status"`
}

// Callback handles the gateway's push notification. It always acknowledges:
// the gateway retries on non-2xx and an unknown reference is a no-op, not a
// failure.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.callbackToken != "" && r.Header.Get("x-callback-token") != h.callbackToken {
		http.Error(w, `{"error":"Unauthorized webhook"}`, http.StatusUnauthorized)
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Invalid callback payload"})
		return
	}

	log.Printf("Payment callback received: transaction_id=%s payment_status=%s", req.TransactionID, req.PaymentStatus)

	if err := h.service.HandleCallback(r.Context(), req.TransactionID, req.PaymentStatus); err != nil {
		log.Printf("Callback processing error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("transaction_id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "transaction_id is required"})
		return
	}

	resp, err := h.service.CheckStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "Transaction not found"})
			return
		}
		log.Printf("Failed to check status for transaction %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to check payment status"})
		return
	}

	tx := resp.Transaction
	body := map[string]any{
		"id":         tx.ID,
		"status":     tx.Status,
		"amount":     tx.Amount,
		"currency":   tx.Currency,
		"provider":   tx.Provider,
		"created_at": tx.CreatedAt,
		"updated_at": tx.UpdatedAt,
	}
	if resp.GatewayStatus != "" {
		body["gateway_status"] = resp.GatewayStatus
	}
	if resp.GatewayError != "" {
		body["gateway_error"] = resp.GatewayError
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "transaction": body})
}

type cancelRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "transaction_id is required"})
		return
	}

	if err := h.service.Cancel(r.Context(), req.TransactionID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "Transaction not found"})
		case errors.Is(err, services.ErrInvalidOperation):
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Transaction cannot be cancelled or already finished"})
		default:
			log.Printf("Failed to cancel transaction %s: %v", req.TransactionID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to cancel transaction"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Transaction cancelled"})
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
			return
		}
		log.Printf("Failed to fetch transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to fetch transactions"})
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}
