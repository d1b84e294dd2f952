package store

import (
	"context"
	"fmt"

	"udb/internal/domain"
)

// Create persists a new entity in its own unit of work and returns the
// assigned id.
func (s *Store) Create(ctx context.Context, authorID *uint, e domain.Entity) (uint, error) {
	sess := s.NewSession(authorID)
	sess.Create(e)
	if err := sess.Commit(ctx); err != nil {
		return 0, err
	}
	return e.GetID(), nil
}

// Apply loads an entity, lets the caller mutate it and commits,
// returning the change set that was recorded.
func (s *Store) Apply(ctx context.Context, authorID *uint, kind domain.Kind, id uint, mutate func(domain.Entity) error) (domain.ChangeSet, error) {
	sess := s.NewSession(authorID)
	e, err := sess.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	before := e.Fields()
	if err := mutate(e); err != nil {
		return nil, err
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	return Diff(before, e.Fields()), nil
}

// SoftDelete marks an entity deleted, keeping the row and its history.
// Vrfs are refused while a non-deleted subnet still references them.
func (s *Store) SoftDelete(ctx context.Context, authorID *uint, kind domain.Kind, id uint) error {
	if kind == domain.KindVrf {
		var n int64
		err := s.db.WithContext(ctx).
			Table("subnets").
			Where("vrf_id = ? AND status <> ?", id, domain.StatusDeleted).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return &domain.ReferentialError{
				Message: fmt.Sprintf("vrf is still referenced by %d subnet(s)", n),
			}
		}
	}

	sess := s.NewSession(authorID)
	e, err := sess.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if e.Meta().Status == domain.StatusDeleted {
		return nil
	}
	e.Meta().Status = domain.StatusDeleted
	return sess.Commit(ctx)
}

// Restore brings a soft-deleted entity back to enabled.
func (s *Store) Restore(ctx context.Context, authorID *uint, kind domain.Kind, id uint) error {
	sess := s.NewSession(authorID)
	e, err := sess.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if e.Meta().Status != domain.StatusDeleted {
		return nil
	}
	e.Meta().Status = domain.StatusEnabled
	return sess.Commit(ctx)
}

// AddComment appends an operator comment to the audit trail of an
// entity without changing any field.
func (s *Store) AddComment(ctx context.Context, authorID *uint, kind domain.Kind, id uint, body string) error {
	sess := s.NewSession(authorID)
	e, err := sess.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	sess.Comment(e, body)
	return sess.Commit(ctx)
}
