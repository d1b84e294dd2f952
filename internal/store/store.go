package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"udb/internal/database"
	"udb/internal/domain"
)

// Notifier receives the follower/message aggregation of one commit.
// Implementations are external collaborators (SMTP, tests).
type Notifier interface {
	Notify(ctx context.Context, notifications []Notification)
}

// Notification bundles the messages one follower should receive for one
// commit. At most one notification per (follower, commit) per entity.
type Notification struct {
	User     *domain.User
	Messages []*domain.Message
}

// InlineChecker runs the enforced rules against the entities touched by
// the transaction, before commit. A non-nil error aborts the commit.
type InlineChecker func(tx *gorm.DB, touched []Ref) error

// Ref identifies one tracked entity.
type Ref struct {
	Kind domain.Kind
	ID   uint
}

// Store is the repository over all entity kinds. One Store serves the
// whole process; every request works through its own Session.
type Store struct {
	db       *gorm.DB
	registry *Registry
	notifier Notifier
	checker  InlineChecker
}

func New(db *gorm.DB, registry *Registry) *Store {
	return &Store{db: db, registry: registry}
}

func (s *Store) DB() *gorm.DB { return s.db }

// SetNotifier installs the notification collaborator.
func (s *Store) SetNotifier(n Notifier) { s.notifier = n }

// SetInlineChecker installs the enforced-rule pre-commit check.
func (s *Store) SetInlineChecker(c InlineChecker) { s.checker = c }

// NewEntity returns a zero entity of the kind.
func (s *Store) NewEntity(kind domain.Kind) (domain.Entity, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q: %w", kind, domain.ErrNotFound)
	}
	return info.newEntity(), nil
}

// Get loads one entity with its relations, soft-deleted included.
func (s *Store) Get(ctx context.Context, kind domain.Kind, id uint) (domain.Entity, error) {
	e, err := s.NewEntity(kind)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx)
	switch kind {
	case domain.KindSubnet:
		q = q.Preload("Ranges").Preload("Zones").Preload("Vrf")
	case domain.KindDnsZone:
		q = q.Preload("Subnets")
	}
	if err := q.First(e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// MapError converts a database failure into one of the core error
// kinds. Unique violations become ConflictError on the guarded field.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field := database.UniqueViolationField(pgErr.ConstraintName)
		if field == "" {
			field = pgErr.ConstraintName
		}
		return &domain.ConflictError{Field: field, Message: "value already in use"}
	}
	if strings.Contains(err.Error(), "duplicate key value") {
		return &domain.ConflictError{Field: "name", Message: "value already in use"}
	}
	return err
}
