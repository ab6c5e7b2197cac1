package sqlstore

import (
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:integration_connections,alias:ic"`

	ID                string     `bun:"id,pk"`
	UserID            string     `bun:"user_id,notnull"`
	Integration       string     `bun:"integration,notnull"`
	ExternalAccountID string     `bun:"external_account_id"`
	AccountName       string     `bun:"account_name"`
	AccountEmail      string     `bun:"account_email"`
	Scope             string     `bun:"scope"`
	Status            string     `bun:"status,notnull"`
	LastError         string     `bun:"last_error"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete"`
}

func newConnectionRecord(in core.CreateConnectionInput, now time.Time) *connectionRecord {
	return &connectionRecord{
		UserID:            in.UserID,
		Integration:       in.Integration.String(),
		ExternalAccountID: in.ExternalAccountID,
		AccountName:       in.AccountName,
		AccountEmail:      in.AccountEmail,
		Scope:             in.Scope,
		Status:            string(in.Status),
		LastError:         "",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:                r.ID,
		UserID:            r.UserID,
		Integration:       core.IntegrationType(r.Integration),
		ExternalAccountID: r.ExternalAccountID,
		AccountName:       r.AccountName,
		AccountEmail:      r.AccountEmail,
		Scope:             r.Scope,
		Status:            core.ConnectionStatus(r.Status),
		LastError:         r.LastError,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
