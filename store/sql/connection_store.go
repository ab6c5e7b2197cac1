package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ConnectionStore persists integration connections through the shared
// repository layer. Records are soft deleted; reads exclude tombstones.
type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
	now  func() time.Time
}

func (s *ConnectionStore) Create(ctx context.Context, in core.CreateConnectionInput) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: user id is required")
	}
	if !in.Integration.Valid() {
		return core.Connection{}, fmt.Errorf("sqlstore: unsupported integration type %q", in.Integration)
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.ConnectionStatusActive
	}
	in.Status = status

	created, err := s.repo.Create(ctx, newConnectionRecord(in, s.timestamp()))
	if err != nil {
		return core.Connection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) FindByUser(ctx context.Context, userID string, integration core.IntegrationType) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	if !integration.Valid() {
		return nil, fmt.Errorf("sqlstore: unsupported integration type %q", integration)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.SelectBy("integration", "=", integration.String()),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConnectionStore) UpdateStatus(ctx context.Context, id string, status core.ConnectionStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	current.Status = string(status)
	current.LastError = strings.TrimSpace(reason)
	current.UpdatedAt = s.timestamp()

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}

func (s *ConnectionStore) timestamp() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

var _ core.ConnectionStore = (*ConnectionStore)(nil)
