package store

import (
	"testing"

	"udb/internal/domain"
)

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	var calls []string
	r.Register(domain.KindSubnet, BeforeFlush, func(f *Flush, e domain.Entity) error {
		calls = append(calls, "first")
		return nil
	})
	r.Register(domain.KindSubnet, BeforeFlush, func(f *Flush, e domain.Entity) error {
		calls = append(calls, "second")
		return nil
	})

	hooks := r.get(domain.KindSubnet, BeforeFlush)
	if len(hooks) != 2 {
		t.Fatalf("got %d hooks, want 2", len(hooks))
	}
	for _, h := range hooks {
		if err := h(nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if calls[0] != "first" || calls[1] != "second" {
		t.Errorf("hooks ran out of registration order: %v", calls)
	}

	if got := r.get(domain.KindSubnet, AfterFlush); got != nil {
		t.Errorf("unexpected after-flush hooks: %d", len(got))
	}
	if got := r.get(domain.KindVrf, BeforeFlush); got != nil {
		t.Errorf("unexpected vrf hooks: %d", len(got))
	}
}

func TestRegisterAllCoversEveryKind(t *testing.T) {
	r := NewRegistry()
	r.RegisterAll(AfterFlush, func(f *Flush, e domain.Entity) error { return nil })
	for _, kind := range allKinds {
		if len(r.get(kind, AfterFlush)) != 1 {
			t.Errorf("kind %s missing the hook", kind)
		}
	}
}

func TestKindRankOrdersReferences(t *testing.T) {
	// Referenced rows must be written before their referencers.
	before := func(a, b domain.Kind) {
		t.Helper()
		if kindRank[a] >= kindRank[b] {
			t.Errorf("%s must rank before %s", a, b)
		}
	}
	before(domain.KindVrf, domain.KindSubnet)
	before(domain.KindDnsZone, domain.KindSubnet)
	before(domain.KindUser, domain.KindVrf)
	before(domain.KindSubnet, domain.KindDnsRecord)
	before(domain.KindSubnet, domain.KindDhcpRecord)
	before(domain.KindDhcpRecord, domain.KindIp)
	before(domain.KindDhcpRecord, domain.KindMac)

	for _, kind := range allKinds {
		if _, ok := kindRank[kind]; !ok {
			t.Errorf("kind %s has no write rank", kind)
		}
		if !KnownKind(kind) {
			t.Errorf("kind %s not registered", kind)
		}
	}
}
