package store

import (
	"reflect"
	"testing"

	"udb/internal/domain"
)

func TestDiffOmitsUnchangedFields(t *testing.T) {
	before := map[string]any{"name": "infra", "notes": "", "status": "enabled"}
	after := map[string]any{"name": "infra-new", "notes": "", "status": "enabled"}

	cs := Diff(before, after)
	if len(cs) != 1 {
		t.Fatalf("got %d changes, want 1: %v", len(cs), cs)
	}
	change, ok := cs["name"]
	if !ok {
		t.Fatal("missing change for name")
	}
	if change[0] != "infra" || change[1] != "infra-new" {
		t.Errorf("change = %v, want [infra infra-new]", change)
	}
}

func TestDiffEmptyWhenEqual(t *testing.T) {
	fields := map[string]any{"name": "infra", "vlan": int64(-1), "dhcp": false}
	if cs := Diff(fields, fields); cs != nil {
		t.Errorf("Diff of identical snapshots = %v, want nil", cs)
	}
}

func TestDiffNumericEquivalence(t *testing.T) {
	// Values restored from JSON come back as float64.
	before := map[string]any{"ttl": float64(3600)}
	after := map[string]any{"ttl": 3600}
	if cs := Diff(before, after); cs != nil {
		t.Errorf("Diff = %v, want nil for numerically equal values", cs)
	}
}

func TestChangeSetRoundTrip(t *testing.T) {
	// Applying {f: new} onto the pre-commit snapshot must reproduce the
	// post-commit fields for every tracked field.
	subnet := &domain.Subnet{
		Name:  "DMZ",
		VrfID: 3,
		Ranges: []domain.SubnetRange{
			{Range: "147.87.250.0/24"},
		},
		L3VNI: domain.NetworkIDUndefined,
		L2VNI: domain.NetworkIDUndefined,
		Vlan:  domain.NetworkIDUndefined,
	}
	before := subnet.Fields()

	subnet.Name = "DMZ-2"
	subnet.DhcpEnabled = true
	subnet.Vlan = 12
	after := subnet.Fields()

	cs := Diff(before, after)
	replayed := ApplyChanges(before, cs)
	if !reflect.DeepEqual(replayed, after) {
		t.Errorf("replayed snapshot = %v, want %v", replayed, after)
	}
}

func TestNewChangesSkipsEmptyFields(t *testing.T) {
	vrf := &domain.Vrf{Name: "infra"}
	vrf.Status = domain.StatusEnabled
	cs := NewChanges(vrf.Fields())

	if _, ok := cs["notes"]; ok {
		t.Error("empty notes should not appear in a new change set")
	}
	if change, ok := cs["name"]; !ok || change[0] != nil || change[1] != "infra" {
		t.Errorf("name change = %v, want [nil infra]", change)
	}
}

func TestRegistryFixpointKinds(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterAll(BeforeFlush, func(f *Flush, e domain.Entity) error { return nil })
	for _, kind := range allKinds {
		if len(registry.get(kind, BeforeFlush)) != 1 {
			t.Errorf("kind %s missing the hook", kind)
		}
		if len(registry.get(kind, AfterFlush)) != 0 {
			t.Errorf("kind %s has an unexpected after-flush hook", kind)
		}
	}
}
