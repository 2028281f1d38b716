// Package http serves the JSON API over the reporting services.
//
// This file turns query strings, path values and request bodies into the
// typed inputs the services expect. Parse failures are returned as
// *RequestError so handlers can answer 400 without inspecting them.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"hisob/internal/aggregate"
	"hisob/internal/core"
	"hisob/internal/period"
)

// HeaderUserID carries the caller identity.
const HeaderUserID = "X-User-ID"

const maxBodyBytes = 64 << 10

// RequestError is a malformed request. Field names the offending input.
type RequestError struct {
	Field string
	Err   error
}

func (e *RequestError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

func badRequest(field string, err error) error {
	return &RequestError{Field: field, Err: err}
}

var (
	errMissingUser   = errors.New("missing or invalid " + HeaderUserID + " header")
	errInvalidDate   = errors.New("expected YYYY-MM-DD")
	errInvalidNumber = errors.New("invalid number")
	errInvertedRange = errors.New("end date precedes start date")
)

// ParseUserID reads the positive integer identity header.
func ParseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("", errMissingUser)
	}
	return id, nil
}

// ParsePathID reads a positive integer path value.
func ParsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(name, errInvalidNumber)
	}
	return id, nil
}

// ParseCurrency reads a currency code from query key, defaulting to def when
// absent.
func ParseCurrency(q url.Values, key string, def core.Currency) (core.Currency, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	c, err := core.ParseCurrency(v)
	if err != nil {
		return "", badRequest(key, err)
	}
	return c, nil
}

// ParseDate reads an optional YYYY-MM-DD value. Absent yields the zero time.
func ParseDate(q url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, badRequest(key, errInvalidDate)
	}
	return t, nil
}

// ParseDecimal reads an optional decimal. Absent yields zero.
func ParseDecimal(q url.Values, key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, badRequest(key, errInvalidNumber)
	}
	return d, nil
}

// ParseRange resolves the period, start and end parameters. start and end
// without a period imply a custom range. An unknown token falls back to the
// current month and is reported through warn; a custom range whose end
// precedes its start is rejected.
func ParseRange(q url.Values, now time.Time) (r period.Range, token string, warn error, err error) {
	token = strings.ToLower(strings.TrimSpace(q.Get("period")))

	start, err := ParseDate(q, "start")
	if err != nil {
		return period.Range{}, "", nil, err
	}
	end, err := ParseDate(q, "end")
	if err != nil {
		return period.Range{}, "", nil, err
	}

	var custom *period.Range
	if !start.IsZero() || !end.IsZero() {
		if token == "" {
			token = period.Custom
		}
		if token == period.Custom {
			custom = &period.Range{Start: start, End: end}
		}
	}

	r, rerr := period.Resolve(token, now, custom)
	switch {
	case errors.Is(rerr, period.ErrMissingCustomRange):
		return period.Range{}, "", nil, badRequest("period", rerr)
	case rerr != nil:
		warn = rerr
		token = period.ThisMonth
	}
	if !r.Valid() {
		return period.Range{}, "", nil, badRequest("end", errInvertedRange)
	}
	return r, token, warn, nil
}

// ParseFilter builds a FilterSpec from the query. Multi-valued filters
// accept both repeated keys and comma separated lists.
func ParseFilter(q url.Values, now time.Time) (f aggregate.FilterSpec, token string, warn error, err error) {
	f.Range, token, warn, err = ParseRange(q, now)
	if err != nil {
		return aggregate.FilterSpec{}, "", nil, err
	}

	if v := strings.ToLower(strings.TrimSpace(q.Get("kind"))); v != "" {
		f.Kind = core.Kind(v)
		if !f.Kind.Valid() {
			return aggregate.FilterSpec{}, "", nil, badRequest("kind", core.ErrInvalidKind)
		}
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("status"))); v != "" {
		f.Status = core.TransactionStatus(v)
		if !f.Status.Valid() {
			return aggregate.FilterSpec{}, "", nil, badRequest("status", core.ErrInvalidStatus)
		}
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("payment_method"))); v != "" {
		f.PaymentMethod = core.PaymentMethod(v)
		if !f.PaymentMethod.Valid() {
			return aggregate.FilterSpec{}, "", nil, badRequest("payment_method", core.ErrInvalidPayment)
		}
	}
	if f.Currency, err = ParseCurrency(q, "tx_currency", ""); err != nil {
		return aggregate.FilterSpec{}, "", nil, err
	}
	for _, v := range listValues(q, "category") {
		id, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || id < 0 {
			return aggregate.FilterSpec{}, "", nil, badRequest("category", errInvalidNumber)
		}
		f.CategoryIDs = append(f.CategoryIDs, id)
	}
	f.Tags = listValues(q, "tag")
	f.Search = strings.TrimSpace(q.Get("search"))
	if f.MinAmount, err = ParseDecimal(q, "min_amount"); err != nil {
		return aggregate.FilterSpec{}, "", nil, err
	}
	if f.MaxAmount, err = ParseDecimal(q, "max_amount"); err != nil {
		return aggregate.FilterSpec{}, "", nil, err
	}
	return f, token, warn, nil
}

func listValues(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// TransactionRequest is the body of POST /api/transactions.
type TransactionRequest struct {
	Kind          string   `json:"type"`
	Amount        string   `json:"amount"`
	Currency      string   `json:"currency"`
	ExchangeRate  string   `json:"exchange_rate,omitempty"`
	CategoryID    int64    `json:"category_id"`
	CategoryName  string   `json:"category_name"`
	Date          string   `json:"date"`
	PaymentMethod string   `json:"payment_method"`
	Tags          []string `json:"tags"`
	Status        string   `json:"status"`
	Source        string   `json:"source"`
	Description   string   `json:"description"`
	IsTaxable     bool     `json:"is_taxable"`
	TaxAmount     string   `json:"tax_amount,omitempty"`
}

// DecodeTransaction reads a TransactionRequest body and converts it. Domain
// validation is left to the service.
func DecodeTransaction(r *http.Request, userID int64, now time.Time) (core.Transaction, error) {
	var req TransactionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return core.Transaction{}, badRequest("body", fmt.Errorf("invalid JSON: %w", err))
	}
	return req.toTransaction(userID, now)
}

func (req TransactionRequest) toTransaction(userID int64, now time.Time) (core.Transaction, error) {
	tx := core.Transaction{
		UserID:        userID,
		Kind:          core.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		CategoryID:    req.CategoryID,
		PaymentMethod: core.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Tags:          req.Tags,
		Status:        core.TransactionStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		IsTaxable:     req.IsTaxable,
	}

	var err error
	for _, f := range []struct {
		name string
		in   string
		out  *string
	}{
		{"category_name", req.CategoryName, &tx.CategoryName},
		{"source", req.Source, &tx.Source},
		{"description", req.Description, &tx.Description},
	} {
		if *f.out, err = sanitizeInput(f.in); err != nil {
			return core.Transaction{}, badRequest(f.name, err)
		}
	}

	if tx.Amount, err = core.ParseAmount(req.Amount); err != nil {
		return core.Transaction{}, badRequest("amount", err)
	}

	if tx.Currency, err = core.ParseCurrency(req.Currency); err != nil {
		return core.Transaction{}, badRequest("currency", err)
	}
	if v := strings.TrimSpace(req.ExchangeRate); v != "" {
		if tx.ExchangeRate, err = decimal.NewFromString(v); err != nil {
			return core.Transaction{}, badRequest("exchange_rate", errInvalidNumber)
		}
	}
	if v := strings.TrimSpace(req.TaxAmount); v != "" {
		if tx.TaxAmount, err = decimal.NewFromString(v); err != nil {
			return core.Transaction{}, badRequest("tax_amount", errInvalidNumber)
		}
	}

	tx.Date = core.DateOf(now)
	if v := strings.TrimSpace(req.Date); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return core.Transaction{}, badRequest("date", errInvalidDate)
		}
		tx.Date = core.DateOf(d)
	}
	return tx, nil
}

// sanitizeInput trims s and drops control characters. Text still longer
// than core.MaxTextLength is rejected.
func sanitizeInput(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if utf8.RuneCountInString(s) > core.MaxTextLength {
		return "", core.ErrTextTooLong
	}
	return s, nil
}
