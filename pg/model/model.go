package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Connection links a local user to a Xero tenant. Exactly one live connection
// exists per user; a re-authorization overwrites the previous record.
type Connection struct {
	ID                    uuid.UUID  `json:"id"`
	UserID                uuid.UUID  `json:"user_id"`
	TenantID              string     `json:"tenant_id"`
	EncryptedRefreshToken string     `json:"-"` // never expose in JSON
	OrganizationName      string     `json:"organization_name"`
	ConnectedAt           time.Time  `json:"connected_at"`
	LastRefreshedAt       *time.Time `json:"last_refreshed_at,omitempty"`
}

// DataCache is the daily materialized extract for one user. At most one row
// exists per (user, calendar date); later runs on the same day overwrite.
type DataCache struct {
	UserID                 uuid.UUID       `json:"user_id"`
	Date                   time.Time       `json:"date"`
	WeeklyIncome           *float64        `json:"weekly_income"`
	AvgWages               *float64        `json:"avg_wages"`
	AvgExpenses            *float64        `json:"avg_expenses"`
	TotalCostOfSales       *float64        `json:"total_cost_of_sales"`
	TotalOperatingExpenses *float64        `json:"total_operating_expenses"`
	DataJSON               json.RawMessage `json:"data_json"`
	ExtractedAt            time.Time       `json:"extracted_at"`
}

// Dashboard is read-only BI dashboard configuration consumed by the portal.
type Dashboard struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	EmbedURL string    `json:"embed_url"`
	BITool   string    `json:"bi_tool"`
}

// Store defines the database operations required by the connection and ETL
// services.
type Store interface {
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*Connection, error)
	GetConnectionByUserID(ctx context.Context, userID uuid.UUID) (*Connection, error)
	ListConnections(ctx context.Context) ([]Connection, error)
	UpsertConnection(ctx context.Context, conn *Connection) error
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, encryptedToken string, refreshedAt time.Time) error
	TouchLastRefreshed(ctx context.Context, id uuid.UUID, refreshedAt time.Time) error
	DeleteConnection(ctx context.Context, userID uuid.UUID) error

	UpsertDataCache(ctx context.Context, row *DataCache) error

	ListDashboardsForRole(ctx context.Context, role string) ([]Dashboard, error)
}

// NotFoundError is returned by Store lookups when no row matches.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}
