package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerline.com/xerobi/pg/model"
)

// PostgresStore implements model.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const connectionColumns = `id, user_id, tenant_id, encrypted_refresh_token, organization_name, connected_at, last_refreshed_at`

func scanConnection(row pgx.Row) (*model.Connection, error) {
	conn := &model.Connection{}
	err := row.Scan(
		&conn.ID, &conn.UserID, &conn.TenantID, &conn.EncryptedRefreshToken,
		&conn.OrganizationName, &conn.ConnectedAt, &conn.LastRefreshedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "connection"}
	}
	if err != nil {
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	return conn, nil
}

func (p *PostgresStore) GetConnectionByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM xero_connections WHERE id = $1`
	return scanConnection(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresStore) GetConnectionByUserID(ctx context.Context, userID uuid.UUID) (*model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM xero_connections WHERE user_id = $1`
	return scanConnection(p.pool.QueryRow(ctx, query, userID))
}

func (p *PostgresStore) ListConnections(ctx context.Context) ([]model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM xero_connections ORDER BY connected_at`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		var conn model.Connection
		if err := rows.Scan(
			&conn.ID, &conn.UserID, &conn.TenantID, &conn.EncryptedRefreshToken,
			&conn.OrganizationName, &conn.ConnectedAt, &conn.LastRefreshedAt,
		); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

// UpsertConnection inserts a connection or, when the user reconnects, replaces
// the previous one. The unique index on user_id is what guarantees "exactly one
// live connection per user"; last_refreshed_at is deliberately left untouched
// on conflict.
func (p *PostgresStore) UpsertConnection(ctx context.Context, conn *model.Connection) error {
	query := `
		INSERT INTO xero_connections (id, user_id, tenant_id, encrypted_refresh_token, organization_name, connected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			organization_name = EXCLUDED.organization_name,
			connected_at = EXCLUDED.connected_at`

	_, err := p.pool.Exec(ctx, query,
		conn.ID, conn.UserID, conn.TenantID, conn.EncryptedRefreshToken,
		conn.OrganizationName, conn.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// UpdateRefreshToken stores a rotated refresh token together with the refresh
// timestamp.
func (p *PostgresStore) UpdateRefreshToken(ctx context.Context, id uuid.UUID, encryptedToken string, refreshedAt time.Time) error {
	query := `UPDATE xero_connections SET encrypted_refresh_token = $2, last_refreshed_at = $3 WHERE id = $1`
	_, err := p.pool.Exec(ctx, query, id, encryptedToken, refreshedAt)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	return nil
}

func (p *PostgresStore) TouchLastRefreshed(ctx context.Context, id uuid.UUID, refreshedAt time.Time) error {
	query := `UPDATE xero_connections SET last_refreshed_at = $2 WHERE id = $1`
	_, err := p.pool.Exec(ctx, query, id, refreshedAt)
	if err != nil {
		return fmt.Errorf("touch last refreshed: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteConnection(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM xero_connections WHERE user_id = $1`
	_, err := p.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// UpsertDataCache writes the daily extract row. The unique index on
// (user_id, date) makes same-day re-runs overwrite rather than duplicate.
func (p *PostgresStore) UpsertDataCache(ctx context.Context, row *model.DataCache) error {
	query := `
		INSERT INTO xero_data_cache
			(user_id, date, weekly_income, avg_wages, avg_expenses, total_cost_of_sales, total_operating_expenses, data_json, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, date) DO UPDATE SET
			weekly_income = EXCLUDED.weekly_income,
			avg_wages = EXCLUDED.avg_wages,
			avg_expenses = EXCLUDED.avg_expenses,
			total_cost_of_sales = EXCLUDED.total_cost_of_sales,
			total_operating_expenses = EXCLUDED.total_operating_expenses,
			data_json = EXCLUDED.data_json,
			extracted_at = EXCLUDED.extracted_at`

	_, err := p.pool.Exec(ctx, query,
		row.UserID, row.Date, row.WeeklyIncome, row.AvgWages, row.AvgExpenses,
		row.TotalCostOfSales, row.TotalOperatingExpenses, row.DataJSON, row.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert data cache: %w", err)
	}
	return nil
}

// ListDashboardsForRole returns the dashboards mapped to a role via the
// dashboard_permissions table. The mapping is read-only configuration.
func (p *PostgresStore) ListDashboardsForRole(ctx context.Context, role string) ([]model.Dashboard, error) {
	query := `
		SELECT d.id, d.name, d.embed_url, d.bi_tool
		FROM dashboard_permissions dp
		JOIN dashboards d ON d.id = dp.dashboard_id
		WHERE dp.role = $1
		ORDER BY d.name`

	rows, err := p.pool.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	defer rows.Close()

	var dashboards []model.Dashboard
	for rows.Next() {
		var d model.Dashboard
		if err := rows.Scan(&d.ID, &d.Name, &d.EmbedURL, &d.BITool); err != nil {
			return nil, fmt.Errorf("scan dashboard: %w", err)
		}
		dashboards = append(dashboards, d)
	}
	return dashboards, rows.Err()
}
