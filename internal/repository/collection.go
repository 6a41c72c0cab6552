package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// Entity is implemented by pointers to domain types that embed domain.Meta.
type Entity[T any] interface {
	*T
	Metadata() *domain.Meta
}

// Collection maps one document collection onto a domain type.
type Collection[T any, PT Entity[T]] struct {
	store Store
	name  string
	now   func() time.Time
}

func NewCollection[T any, PT Entity[T]](store Store, name string, now func() time.Time) *Collection[T, PT] {
	if now == nil {
		now = time.Now
	}
	return &Collection[T, PT]{store: store, name: name, now: now}
}

// Create assigns an id when missing, stamps timestamps and persists the entity.
func (c *Collection[T, PT]) Create(ctx context.Context, entity PT) error {
	meta := entity.Metadata()
	if meta.OrganizationID == "" {
		return fmt.Errorf("%s: organization id is required", c.name)
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	now := c.now().UTC()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	rec, err := c.toRecord(entity)
	if err != nil {
		return err
	}
	stored, err := c.store.Create(ctx, c.name, rec)
	if err != nil {
		return err
	}
	meta.Version = stored.Version
	return nil
}

// Get returns ErrNotFound when the id does not exist inside orgID.
func (c *Collection[T, PT]) Get(ctx context.Context, id, orgID string) (PT, error) {
	rec, err := c.store.Get(ctx, c.name, id, orgID)
	if err != nil {
		return nil, err
	}
	return c.fromRecord(rec)
}

// Update replaces the stored document unconditionally.
func (c *Collection[T, PT]) Update(ctx context.Context, entity PT) error {
	return c.update(ctx, entity, 0)
}

// UpdateIfUnchanged replaces the document only if nobody wrote it since it was read.
func (c *Collection[T, PT]) UpdateIfUnchanged(ctx context.Context, entity PT) error {
	version := entity.Metadata().Version
	if version == 0 {
		return fmt.Errorf("%s: conditional update requires a loaded entity", c.name)
	}
	return c.update(ctx, entity, version)
}

func (c *Collection[T, PT]) update(ctx context.Context, entity PT, expectedVersion int64) error {
	meta := entity.Metadata()
	meta.UpdatedAt = c.now().UTC()

	rec, err := c.toRecord(entity)
	if err != nil {
		return err
	}
	stored, err := c.store.Update(ctx, c.name, rec, expectedVersion)
	if err != nil {
		return err
	}
	meta.Version = stored.Version
	meta.CreatedAt = stored.CreatedAt
	return nil
}

func (c *Collection[T, PT]) Delete(ctx context.Context, id, orgID string) error {
	return c.store.Delete(ctx, c.name, id, orgID)
}

func (c *Collection[T, PT]) Query(ctx context.Context, orgID string, q Query) ([]PT, error) {
	recs, err := c.store.Query(ctx, c.name, orgID, q)
	if err != nil {
		return nil, err
	}
	return c.fromRecords(recs)
}

func (c *Collection[T, PT]) Count(ctx context.Context, orgID string, q Query) (int, error) {
	return c.store.Count(ctx, c.name, orgID, q)
}

func (c *Collection[T, PT]) findAcrossTenants(ctx context.Context, field, value string) ([]PT, error) {
	recs, err := c.store.FindAcrossTenants(ctx, c.name, field, value)
	if err != nil {
		return nil, err
	}
	return c.fromRecords(recs)
}

func (c *Collection[T, PT]) toRecord(entity PT) (Record, error) {
	meta := entity.Metadata()
	body, err := json.Marshal(entity)
	if err != nil {
		return Record{}, fmt.Errorf("%s: encode: %w", c.name, err)
	}
	return Record{
		ID:             meta.ID,
		OrganizationID: meta.OrganizationID,
		CreatedAt:      meta.CreatedAt,
		UpdatedAt:      meta.UpdatedAt,
		Body:           body,
	}, nil
}

func (c *Collection[T, PT]) fromRecord(rec Record) (PT, error) {
	entity := PT(new(T))
	if err := json.Unmarshal(rec.Body, entity); err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", c.name, rec.ID, err)
	}
	meta := entity.Metadata()
	meta.ID = rec.ID
	meta.OrganizationID = rec.OrganizationID
	meta.CreatedAt = rec.CreatedAt
	meta.UpdatedAt = rec.UpdatedAt
	meta.Version = rec.Version
	return entity, nil
}

func (c *Collection[T, PT]) fromRecords(recs []Record) ([]PT, error) {
	out := make([]PT, 0, len(recs))
	for _, rec := range recs {
		entity, err := c.fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
