// Package etl is the batch extraction pipeline: for every stored Xero
// connection it mints an access token, pulls the three upstream endpoints,
// derives the dashboard metrics and upserts the day's cache row. Failures are
// isolated per user; one broken connection never stops the batch.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledgerline.com/xerobi/pg/model"
	"ledgerline.com/xerobi/xero"
)

// TokenSource mints a fresh access token for a connection. Implemented by
// the connections service.
type TokenSource interface {
	AccessToken(ctx context.Context, connectionID uuid.UUID) (string, error)
}

// DataSource is the slice of the Xero client the extractor reads from.
type DataSource interface {
	BankTransactions(ctx context.Context, accessToken, tenantID string) ([]xero.BankTransaction, json.RawMessage, error)
	Accounts(ctx context.Context, accessToken, tenantID string) ([]xero.Account, json.RawMessage, error)
	ProfitAndLoss(ctx context.Context, accessToken, tenantID string) (*xero.Report, json.RawMessage, error)
}

// UserError records why one user's extraction failed.
type UserError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// Summary is the batch outcome returned to the trigger.
type Summary struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Errors  []UserError `json:"errors"`
}

// Extractor runs the batch.
type Extractor struct {
	store  model.Store
	tokens TokenSource
	data   DataSource
	logger *zap.Logger
	now    func() time.Time
}

func NewExtractor(store model.Store, tokens TokenSource, data DataSource, logger *zap.Logger) *Extractor {
	return &Extractor{
		store:  store,
		tokens: tokens,
		data:   data,
		logger: logger,
		now:    time.Now,
	}
}

// Run processes every stored connection sequentially. It only fails as a
// whole when the connection listing itself cannot be read; everything after
// that is captured per user in the summary.
func (e *Extractor) Run(ctx context.Context) (*Summary, error) {
	connections, err := e.store.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch connections: %w", err)
	}

	e.logger.Info("starting extraction", zap.Int("connections", len(connections)))

	summary := &Summary{Errors: []UserError{}}
	for i := range connections {
		conn := &connections[i]
		if err := e.processConnection(ctx, conn); err != nil {
			e.logger.Error("extraction failed for user",
				zap.String("user_id", conn.UserID.String()), zap.Error(err))
			summary.Failed++
			summary.Errors = append(summary.Errors, UserError{
				UserID: conn.UserID.String(),
				Error:  err.Error(),
			})
			continue
		}
		summary.Success++
	}

	e.logger.Info("extraction complete",
		zap.Int("success", summary.Success), zap.Int("failed", summary.Failed))
	return summary, nil
}

func (e *Extractor) processConnection(ctx context.Context, conn *model.Connection) error {
	accessToken, err := e.tokens.AccessToken(ctx, conn.ID)
	if err != nil {
		return err
	}

	transactions, rawTransactions, err := e.data.BankTransactions(ctx, accessToken, conn.TenantID)
	if err != nil {
		return err
	}
	accounts, rawAccounts, err := e.data.Accounts(ctx, accessToken, conn.TenantID)
	if err != nil {
		return err
	}
	report, rawReport, err := e.data.ProfitAndLoss(ctx, accessToken, conn.TenantID)
	if err != nil {
		return err
	}

	dataJSON, err := json.Marshal(map[string]json.RawMessage{
		"bankTransactions": rawTransactions,
		"accounts":         rawAccounts,
		"profitLoss":       rawReport,
	})
	if err != nil {
		return fmt.Errorf("combine raw payloads: %w", err)
	}

	now := e.now().UTC()
	metrics := Transform(transactions, accounts, report, now)

	row := &model.DataCache{
		UserID:                 conn.UserID,
		Date:                   now.Truncate(24 * time.Hour),
		WeeklyIncome:           &metrics.WeeklyIncome,
		AvgWages:               &metrics.AvgWages,
		AvgExpenses:            &metrics.AvgExpenses,
		TotalCostOfSales:       &metrics.TotalCostOfSales,
		TotalOperatingExpenses: &metrics.TotalOperatingExpenses,
		DataJSON:               dataJSON,
		ExtractedAt:            now,
	}
	if err := e.store.UpsertDataCache(ctx, row); err != nil {
		return fmt.Errorf("database upsert failed: %w", err)
	}
	return nil
}
