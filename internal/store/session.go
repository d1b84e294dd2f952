package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"udb/internal/domain"
)

// fixpointBound caps before-flush hook iteration. Exceeding it means a
// hook keeps dirtying rows forever, which is corrupted state.
const fixpointBound = 10

type item struct {
	entity    domain.Entity
	snapshot  map[string]any // nil for new entities
	comment   string
	processed bool
	changes   domain.ChangeSet // filled during the write phase
	isNew     bool
	messages  []*domain.Message
}

type parentTouch struct {
	ref  Ref
	body string
}

// Session is the per-request unit of work. Entities loaded through it
// are tracked; Commit flushes everything in one transaction.
type Session struct {
	store          *Store
	authorID       *uint
	items          []*item
	parents        []parentTouch
	parentMessages []*domain.Message
	tx             *gorm.DB
	done           bool
}

// NewSession opens a unit of work on behalf of an author (nil for
// system changes).
func (s *Store) NewSession(authorID *uint) *Session {
	return &Session{store: s, authorID: authorID}
}

// Get loads an entity into the session and snapshots its tracked fields
// so Commit can compute the change set.
func (sess *Session) Get(ctx context.Context, kind domain.Kind, id uint) (domain.Entity, error) {
	for _, it := range sess.items {
		if it.entity.Kind() == kind && it.entity.GetID() == id {
			return it.entity, nil
		}
	}
	e, err := sess.store.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	sess.items = append(sess.items, &item{entity: e, snapshot: e.Fields()})
	return e, nil
}

// Create stages a new entity.
func (sess *Session) Create(e domain.Entity) {
	sess.items = append(sess.items, &item{entity: e, isNew: true})
}

// Comment attaches an operator comment to a tracked entity. It is
// written as its own message even when no field changed.
func (sess *Session) Comment(e domain.Entity, body string) {
	for _, it := range sess.items {
		if it.entity == e {
			it.comment = body
			return
		}
	}
	sess.items = append(sess.items, &item{entity: e, snapshot: e.Fields(), comment: body})
}

// Commit runs the flush pipeline: before-flush hooks to fixpoint,
// dependency-ordered writes, message emission, enforced rules,
// after-flush hooks, then the database commit. Any error rolls back and
// expunges the session so the caller never observes partial state.
func (sess *Session) Commit(ctx context.Context) error {
	if sess.done {
		return &domain.FatalError{Message: "session already committed or expunged"}
	}
	if len(sess.items) == 0 {
		return nil
	}

	tx := sess.store.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	sess.tx = tx

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			sess.expunge()
			log.Errorf("Transaction rolled back due to panic: %v", r)
			panic(r)
		}
	}()

	var notifications []Notification
	err := func() error {
		flush := &Flush{ctx: ctx, session: sess}

		if err := sess.runBeforeHooks(flush); err != nil {
			return err
		}
		if err := sess.writeEntities(); err != nil {
			return MapError(err)
		}
		if err := sess.writeMessages(); err != nil {
			return err
		}
		if sess.store.checker != nil {
			if err := sess.store.checker(tx, sess.touched()); err != nil {
				return err
			}
		}
		if err := sess.runAfterHooks(flush); err != nil {
			return err
		}
		var err error
		notifications, err = sess.collectNotifications()
		if err != nil {
			return err
		}
		return tx.Commit().Error
	}()
	if err != nil {
		tx.Rollback()
		sess.expunge()
		return err
	}

	sess.done = true
	if sess.store.notifier != nil && len(notifications) > 0 {
		sess.store.notifier.Notify(ctx, notifications)
		sess.markSent(ctx, notifications)
	}
	return nil
}

// markSent flags the dispatched messages outside the commit
// transaction; a failure here only costs the flag, never the commit.
func (sess *Session) markSent(ctx context.Context, notifications []Notification) {
	ids := make([]uint, 0, len(notifications))
	seen := make(map[uint]bool)
	for _, n := range notifications {
		for _, msg := range n.Messages {
			if msg.ID != 0 && !seen[msg.ID] {
				seen[msg.ID] = true
				ids = append(ids, msg.ID)
			}
		}
	}
	if len(ids) == 0 {
		return
	}
	err := sess.store.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id IN ?", ids).
		Update("sent", true).Error
	if err != nil {
		log.Warn("could not flag notified messages", "error", err)
	}
}

// expunge detaches every tracked entity so the caller cannot keep
// working on half-flushed state.
func (sess *Session) expunge() {
	sess.items = nil
	sess.parents = nil
	sess.parentMessages = nil
	sess.done = true
}

func (sess *Session) runBeforeHooks(flush *Flush) error {
	for round := 0; ; round++ {
		pending := make([]*item, 0)
		for _, it := range sess.items {
			if !it.processed {
				pending = append(pending, it)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		if round >= fixpointBound {
			return &domain.FatalError{
				Message: fmt.Sprintf("before-flush hooks did not converge after %d iterations", fixpointBound),
			}
		}
		for _, it := range pending {
			it.processed = true
			if err := it.entity.Validate(); err != nil {
				return err
			}
			for _, hook := range sess.store.registry.get(it.entity.Kind(), BeforeFlush) {
				if err := hook(flush, it.entity); err != nil {
					return err
				}
			}
		}
	}
}

func (sess *Session) runAfterHooks(flush *Flush) error {
	for _, it := range sess.items {
		for _, hook := range sess.store.registry.get(it.entity.Kind(), AfterFlush) {
			if err := hook(flush, it.entity); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeEntities persists the working set in dependency order: users
// before vrfs before zones before subnets before records, ip/mac last.
func (sess *Session) writeEntities() error {
	ordered := make([]*item, len(sess.items))
	copy(ordered, sess.items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return kindRank[ordered[i].entity.Kind()] < kindRank[ordered[j].entity.Kind()]
	})

	for _, it := range ordered {
		if it.isNew {
			it.changes = NewChanges(it.entity.Fields())
			if err := sess.writeEntity(it.entity, true); err != nil {
				return err
			}
			continue
		}
		it.changes = Diff(it.snapshot, it.entity.Fields())
		if len(it.changes) == 0 {
			continue
		}
		if err := sess.writeEntity(it.entity, false); err != nil {
			return err
		}
	}
	return nil
}

func (sess *Session) writeEntity(e domain.Entity, isNew bool) error {
	tx := sess.tx
	switch v := e.(type) {
	case *domain.Subnet:
		// The owning vrf may have been created by this very commit; it
		// was written first, so its id is already assigned.
		if v.VrfID == 0 && v.Vrf != nil {
			v.VrfID = v.Vrf.ID
		}
		ranges := v.Ranges
		zones := v.Zones
		v.Ranges = nil
		v.Zones = nil
		var err error
		if isNew {
			err = tx.Omit("Ranges", "Zones", "Vrf").Create(v).Error
		} else {
			err = tx.Omit("Ranges", "Zones", "Vrf").Save(v).Error
		}
		if err != nil {
			return err
		}
		if err := tx.Where("subnet_id = ?", v.ID).Delete(&domain.SubnetRange{}).Error; err != nil {
			return err
		}
		for i := range ranges {
			ranges[i].ID = 0
			ranges[i].SubnetID = v.ID
		}
		if len(ranges) > 0 {
			if err := tx.Create(&ranges).Error; err != nil {
				return err
			}
		}
		// Zones staged by this commit were written before the subnet;
		// copy their assigned ids before replacing the association.
		for i := range zones {
			if zones[i].ID == 0 {
				if z := sess.stagedZone(zones[i].Name); z != nil {
					zones[i].ID = z.ID
				}
			}
		}
		v.Ranges = ranges
		v.Zones = zones
		return tx.Model(v).Association("Zones").Replace(zones)
	case *domain.DnsZone:
		subnets := v.Subnets
		v.Subnets = nil
		var err error
		if isNew {
			err = tx.Omit("Subnets").Create(v).Error
		} else {
			err = tx.Omit("Subnets").Save(v).Error
		}
		if err != nil {
			return err
		}
		v.Subnets = subnets
		return tx.Model(v).Association("Subnets").Replace(subnets)
	default:
		if isNew {
			return tx.Create(e).Error
		}
		return tx.Save(e).Error
	}
}

func (sess *Session) stagedZone(name string) *domain.DnsZone {
	for _, it := range sess.items {
		if z, ok := it.entity.(*domain.DnsZone); ok && z.Name == name {
			return z
		}
	}
	return nil
}

// touched lists every entity written by this commit.
func (sess *Session) touched() []Ref {
	refs := make([]Ref, 0, len(sess.items))
	for _, it := range sess.items {
		if it.isNew || len(it.changes) > 0 {
			refs = append(refs, Ref{Kind: it.entity.Kind(), ID: it.entity.GetID()})
		}
	}
	return refs
}

// Flush is handed to hooks. It exposes the transaction and lets hooks
// stage new rows, dirty tracked rows and record parent touches.
type Flush struct {
	ctx     context.Context
	session *Session
}

func (f *Flush) Context() context.Context { return f.ctx }

// Tx returns the flush transaction when inside Commit, otherwise the
// base connection (hooks validating before commit may run early).
func (f *Flush) Tx() *gorm.DB {
	if f.session.tx != nil {
		return f.session.tx
	}
	return f.session.store.db
}

// AuthorID is the user responsible for this commit, nil for system.
func (f *Flush) AuthorID() *uint { return f.session.authorID }

// Stage adds a new entity to the working set. It will be validated and
// hooked on the next fixpoint round.
func (f *Flush) Stage(e domain.Entity) {
	f.session.items = append(f.session.items, &item{entity: e, isNew: true})
}

// Track loads an entity into the working set, snapshotting it for diff
// computation, and returns the tracked instance.
func (f *Flush) Track(kind domain.Kind, id uint) (domain.Entity, error) {
	return f.session.Get(f.ctx, kind, id)
}

// MarkDirty re-queues a tracked entity for another hook round.
func (f *Flush) MarkDirty(e domain.Entity) {
	for _, it := range f.session.items {
		if it.entity == e {
			it.processed = false
			return
		}
	}
	f.session.items = append(f.session.items, &item{entity: e, snapshot: e.Fields()})
}

// TouchParent records that this commit logically touched a parent
// entity; a message of type parent is appended to it.
func (f *Flush) TouchParent(kind domain.Kind, id uint, body string) {
	if id == 0 {
		return
	}
	for _, p := range f.session.parents {
		if p.ref.Kind == kind && p.ref.ID == id && p.body == body {
			return
		}
	}
	f.session.parents = append(f.session.parents, parentTouch{ref: Ref{Kind: kind, ID: id}, body: body})
}

// staged reports whether the entity is part of the working set.
func (f *Flush) staged(e domain.Entity) bool {
	for _, it := range f.session.items {
		if it.entity == e {
			return true
		}
	}
	return false
}

// Snapshot returns the pre-commit field values of a tracked entity, nil
// for new rows.
func (f *Flush) Snapshot(e domain.Entity) map[string]any {
	for _, it := range f.session.items {
		if it.entity == e {
			return it.snapshot
		}
	}
	return nil
}

// Now is the commit timestamp used for messages and violation stamps.
func (f *Flush) Now() time.Time { return time.Now().UTC() }
