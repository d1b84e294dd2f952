// Package store implements the entity repository and the transactional
// flush pipeline: a per-request unit of work whose commit runs
// before-flush hooks to fixpoint, writes in dependency order, appends
// audit messages and hands follower notifications to the notifier.
package store

import (
	"udb/internal/domain"
)

// Phase of hook execution around the database write.
type Phase int

const (
	BeforeFlush Phase = iota
	AfterFlush
)

// Hook is a plain function invoked by the pipeline for one entity.
// Before-flush hooks may mutate the entity and stage or dirty other
// rows; after-flush hooks see committed ids.
type Hook func(f *Flush, e domain.Entity) error

type hookKey struct {
	kind  domain.Kind
	phase Phase
}

// Registry maps (kind, phase) to hooks. It is populated once at boot by
// the application container and never mutated afterwards; there is no
// unregistration.
type Registry struct {
	hooks map[hookKey][]Hook
}

func NewRegistry() *Registry {
	return &Registry{hooks: make(map[hookKey][]Hook)}
}

func (r *Registry) Register(kind domain.Kind, phase Phase, h Hook) {
	key := hookKey{kind: kind, phase: phase}
	r.hooks[key] = append(r.hooks[key], h)
}

// RegisterAll attaches a hook to every known kind for one phase.
func (r *Registry) RegisterAll(phase Phase, h Hook) {
	for _, kind := range allKinds {
		r.Register(kind, phase, h)
	}
}

func (r *Registry) get(kind domain.Kind, phase Phase) []Hook {
	return r.hooks[hookKey{kind: kind, phase: phase}]
}

var allKinds = []domain.Kind{
	domain.KindUser,
	domain.KindVrf,
	domain.KindSubnet,
	domain.KindDnsZone,
	domain.KindDnsRecord,
	domain.KindDhcpRecord,
	domain.KindIp,
	domain.KindMac,
	domain.KindRule,
}

// kindRank orders database writes so referenced rows exist before their
// referencers. Messages are written last, outside this ranking.
var kindRank = map[domain.Kind]int{
	domain.KindUser:       0,
	domain.KindVrf:        1,
	domain.KindDnsZone:    2,
	domain.KindSubnet:     3,
	domain.KindDnsRecord:  4,
	domain.KindDhcpRecord: 5,
	domain.KindRule:       6,
	domain.KindIp:         7,
	domain.KindMac:        8,
}

type kindInfo struct {
	newEntity func() domain.Entity
	newSlice  func() any
	entities  func(any) []domain.Entity
}

var kinds = map[domain.Kind]kindInfo{
	domain.KindVrf: {
		newEntity: func() domain.Entity { return &domain.Vrf{} },
		newSlice:  func() any { return &[]*domain.Vrf{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.Vrf)) },
	},
	domain.KindSubnet: {
		newEntity: func() domain.Entity { return &domain.Subnet{} },
		newSlice:  func() any { return &[]*domain.Subnet{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.Subnet)) },
	},
	domain.KindDnsZone: {
		newEntity: func() domain.Entity { return &domain.DnsZone{} },
		newSlice:  func() any { return &[]*domain.DnsZone{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.DnsZone)) },
	},
	domain.KindDnsRecord: {
		newEntity: func() domain.Entity { return &domain.DnsRecord{} },
		newSlice:  func() any { return &[]*domain.DnsRecord{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.DnsRecord)) },
	},
	domain.KindDhcpRecord: {
		newEntity: func() domain.Entity { return &domain.DhcpRecord{} },
		newSlice:  func() any { return &[]*domain.DhcpRecord{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.DhcpRecord)) },
	},
	domain.KindIp: {
		newEntity: func() domain.Entity { return &domain.Ip{} },
		newSlice:  func() any { return &[]*domain.Ip{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.Ip)) },
	},
	domain.KindMac: {
		newEntity: func() domain.Entity { return &domain.Mac{} },
		newSlice:  func() any { return &[]*domain.Mac{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.Mac)) },
	},
	domain.KindUser: {
		newEntity: func() domain.Entity { return &domain.User{} },
		newSlice:  func() any { return &[]*domain.User{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.User)) },
	},
	domain.KindRule: {
		newEntity: func() domain.Entity { return &domain.Rule{} },
		newSlice:  func() any { return &[]*domain.Rule{} },
		entities:  func(v any) []domain.Entity { return toEntities(*v.(*[]*domain.Rule)) },
	},
}

func toEntities[T domain.Entity](in []T) []domain.Entity {
	out := make([]domain.Entity, len(in))
	for i, e := range in {
		out[i] = e
	}
	return out
}

// KnownKind reports whether the kind has a registered entity type.
func KnownKind(kind domain.Kind) bool {
	_, ok := kinds[kind]
	return ok
}
