package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/aggregate"
	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/log"
	"hisob/internal/middleware/trace"
	"hisob/internal/storage"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON encodes v with status. Encoding failures after the header is
// sent can only be logged.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response",
			log.FieldError, err,
			log.FieldPath, r.URL.Path)
	}
}

// WriteError answers with the status StatusFor(err). Internal failures are
// logged and their message is not exposed.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		fields := log.NewFields()
		fields[log.FieldStatusCode] = status
		fields["error_type"] = errorType(status)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, r.Method, fields)
		msg = http.StatusText(status)
	}
	WriteJSON(w, r, status, ErrorResponse{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, aggregate.ErrInvalidGroupBy),
		errors.Is(err, aggregate.ErrInvalidGranularity),
		errors.Is(err, aggregate.ErrTooManyPoints):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrInvalidPayment),
		errors.Is(err, core.ErrInvalidTax),
		errors.Is(err, core.ErrMissingCategory),
		errors.Is(err, core.ErrUnsupportedCurrency),
		errors.Is(err, core.ErrInvalidThreshold),
		errors.Is(err, core.ErrInvalidRecurrence),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrTextTooLong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, currency.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorType(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return log.ErrorTypeNetwork
	case http.StatusGatewayTimeout:
		return log.ErrorTypeTimeout
	}
	return log.ErrorTypeInternal
}

// TransactionResponse is the wire form of a transaction.
type TransactionResponse struct {
	ID            string          `json:"id"`
	Kind          core.Kind       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      core.Currency   `json:"currency"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	CategoryID    int64           `json:"category_id"`
	CategoryName  string          `json:"category_name,omitempty"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	Tags          []string        `json:"tags"`
	Status        string          `json:"status"`
	Source        string          `json:"source,omitempty"`
	Description   string          `json:"description,omitempty"`
	IsTaxable     bool            `json:"is_taxable"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newTransactionResponse(tx core.Transaction) TransactionResponse {
	base, _ := tx.BaseAmount()
	tags := tx.Tags
	if tags == nil {
		tags = []string{}
	}
	return TransactionResponse{
		ID:            tx.ID,
		Kind:          tx.Kind,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		ExchangeRate:  tx.ExchangeRate,
		BaseAmount:    base,
		CategoryID:    tx.CategoryID,
		CategoryName:  tx.CategoryName,
		Date:          tx.Date.String(),
		PaymentMethod: string(tx.PaymentMethod),
		Tags:          tags,
		Status:        string(tx.Status),
		Source:        tx.Source,
		Description:   tx.Description,
		IsTaxable:     tx.IsTaxable,
		TaxAmount:     tx.TaxAmount,
		CreatedAt:     tx.CreatedAt,
	}
}

// RatesResponse is the live rate table with converter counters.
type RatesResponse struct {
	Base  core.Currency                     `json:"base"`
	AsOf  time.Time                         `json:"as_of"`
	Rates map[core.Currency]decimal.Decimal `json:"rates"`
	Stats currency.Stats                    `json:"stats"`
}

// ConvertResponse answers /api/convert.
type ConvertResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	From      core.Currency   `json:"from"`
	To        core.Currency   `json:"to"`
	Result    decimal.Decimal `json:"result"`
	Formatted string          `json:"formatted"`
	Date      string          `json:"date,omitempty"`
}

// AggregateResponse wraps a Result with the resolved period.
type AggregateResponse struct {
	aggregate.Result
	Period      string `json:"period"`
	PeriodStart string `json:"start"`
	PeriodEnd   string `json:"end"`
}

// TrendResponse wraps a series with the resolved period.
type TrendResponse struct {
	Currency    core.Currency     `json:"currency"`
	Granularity string            `json:"granularity"`
	Period      string            `json:"period"`
	Points      []aggregate.Point `json:"points"`
}
