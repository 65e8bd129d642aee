// Package connections owns the Xero connection lifecycle: completing the
// OAuth authorization flow, refreshing access tokens from the stored
// credential, and the browser-facing connection endpoints.
package connections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ledgerline.com/xerobi/encryption"
	"ledgerline.com/xerobi/pg/model"
	"ledgerline.com/xerobi/xero"
)

// XeroAPI is the slice of the Xero client this service uses.
type XeroAPI interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*xero.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*xero.TokenSet, error)
	Connections(ctx context.Context, accessToken string) ([]xero.Tenant, error)
}

// Service implements the connection lifecycle against the store and the Xero
// client. The encryption key seals refresh tokens at rest.
type Service struct {
	store  model.Store
	xero   XeroAPI
	encKey string
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store model.Store, api XeroAPI, encryptionKey string, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		xero:   api,
		encKey: encryptionKey,
		logger: logger,
		now:    time.Now,
	}
}

// AuthorizeURL exposes the OAuth entry point for the connect redirect.
func (s *Service) AuthorizeURL(state string) string {
	return s.xero.AuthorizeURL(state)
}

// CompleteAuthorization finishes the OAuth flow for a signed-in user:
// exchanges the code, discovers the connected tenant, seals the refresh token
// and upserts the connection. Re-authorization replaces the user's previous
// connection rather than adding a second one. Nothing is written on any
// failure path.
func (s *Service) CompleteAuthorization(ctx context.Context, code string, userID uuid.UUID) (*model.Connection, error) {
	tokens, err := s.xero.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	tenants, err := s.xero.Connections(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, fmt.Errorf("no Xero organization found for this account")
	}
	tenant := tenants[0]

	encrypted, err := encryption.Encrypt(tokens.RefreshToken, s.encKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}

	conn := &model.Connection{
		ID:                    uuid.New(),
		UserID:                userID,
		TenantID:              tenant.TenantID,
		EncryptedRefreshToken: encrypted,
		OrganizationName:      tenant.TenantName,
		ConnectedAt:           s.now().UTC(),
	}
	if err := s.store.UpsertConnection(ctx, conn); err != nil {
		return nil, fmt.Errorf("store connection: %w", err)
	}

	s.logger.Info("xero connection stored",
		zap.String("user_id", userID.String()),
		zap.String("organization", tenant.TenantName))

	return conn, nil
}

// Grant is a freshly minted access token. It is returned to the caller and
// never persisted.
type Grant struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// RefreshAccessToken decrypts the stored refresh token for a connection and
// exchanges it for a new access token. Xero rotates the refresh token on each
// exchange, so the rotated token is sealed and written back; failing to
// persist it (or the advisory last-refreshed timestamp) is logged but does
// not withhold the access token from the caller.
func (s *Service) RefreshAccessToken(ctx context.Context, connectionID uuid.UUID) (*Grant, error) {
	conn, err := s.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("fetch connection: %w", err)
	}

	refreshToken, err := encryption.Decrypt(conn.EncryptedRefreshToken, s.encKey)
	if err != nil {
		// The stored credential is unusable; the user must reconnect.
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	tokens, err := s.xero.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	refreshedAt := s.now().UTC()
	if tokens.RefreshToken != "" && tokens.RefreshToken != refreshToken {
		encrypted, encErr := encryption.Encrypt(tokens.RefreshToken, s.encKey)
		if encErr == nil {
			encErr = s.store.UpdateRefreshToken(ctx, conn.ID, encrypted, refreshedAt)
		}
		if encErr != nil {
			s.logger.Error("failed to persist rotated refresh token",
				zap.String("connection_id", conn.ID.String()), zap.Error(encErr))
		}
	} else if err := s.store.TouchLastRefreshed(ctx, conn.ID, refreshedAt); err != nil {
		s.logger.Warn("failed to update last_refreshed_at",
			zap.String("connection_id", conn.ID.String()), zap.Error(err))
	}

	return &Grant{AccessToken: tokens.AccessToken, ExpiresIn: tokens.ExpiresIn}, nil
}

// AccessToken is the convenience form used by the ETL extractor.
func (s *Service) AccessToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	grant, err := s.RefreshAccessToken(ctx, connectionID)
	if err != nil {
		return "", err
	}
	return grant.AccessToken, nil
}
