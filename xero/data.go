package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// Date handles the two encodings Xero emits for dates: ISO-8601 strings and
// the legacy .NET "/Date(1518685950940+0000)/" form.
type Date struct {
	time.Time
}

var legacyDateRe = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}

	if m := legacyDateRe.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse legacy date %q: %w", s, err)
		}
		d.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}

// BankTransaction is the subset of the BankTransactions payload the transform
// needs. The full payload is kept separately as raw JSON.
type BankTransaction struct {
	Type   string  `json:"Type"`
	Total  float64 `json:"Total"`
	Date   Date    `json:"Date"`
	Status string  `json:"Status,omitempty"`
}

// Account is the subset of the Accounts payload the transform needs.
type Account struct {
	Code   string `json:"Code"`
	Name   string `json:"Name"`
	Type   string `json:"Type,omitempty"`
	Status string `json:"Status,omitempty"`
}

// BankTransactions fetches transactions filtered to the "RECEIVE" type and
// returns both the decoded rows and the raw response body.
func (c *Client) BankTransactions(ctx context.Context, accessToken, tenantID string) ([]BankTransaction, json.RawMessage, error) {
	query := url.Values{"where": {`Type=="RECEIVE"`}}.Encode()
	raw, err := c.apiGet(ctx, "/api.xro/2.0/BankTransactions", query, accessToken, tenantID, "BankTransactions API")
	if err != nil {
		return nil, nil, err
	}

	var envelope struct {
		BankTransactions []BankTransaction `json:"BankTransactions"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("BankTransactions API: decode response: %w", err)
	}
	return envelope.BankTransactions, raw, nil
}

// wagesAccountCode is the fixed chart-of-accounts code this deployment uses
// for wages.
const wagesAccountCode = "500"

// Accounts fetches the wages account (code 500) and returns both the decoded
// rows and the raw response body.
func (c *Client) Accounts(ctx context.Context, accessToken, tenantID string) ([]Account, json.RawMessage, error) {
	query := url.Values{"where": {fmt.Sprintf(`Code==%q`, wagesAccountCode)}}.Encode()
	raw, err := c.apiGet(ctx, "/api.xro/2.0/Accounts", query, accessToken, tenantID, "Accounts API")
	if err != nil {
		return nil, nil, err
	}

	var envelope struct {
		Accounts []Account `json:"Accounts"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("Accounts API: decode response: %w", err)
	}
	return envelope.Accounts, raw, nil
}

// ProfitAndLoss fetches the profit-and-loss report and returns the first
// report in the envelope (nil if the envelope is empty) plus the raw body.
func (c *Client) ProfitAndLoss(ctx context.Context, accessToken, tenantID string) (*Report, json.RawMessage, error) {
	raw, err := c.apiGet(ctx, "/api.xro/2.0/Reports/ProfitAndLoss", "", accessToken, tenantID, "ProfitAndLoss API")
	if err != nil {
		return nil, nil, err
	}

	var envelope struct {
		Reports []Report `json:"Reports"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("ProfitAndLoss API: decode response: %w", err)
	}
	if len(envelope.Reports) == 0 {
		return nil, raw, nil
	}
	return &envelope.Reports[0], raw, nil
}
