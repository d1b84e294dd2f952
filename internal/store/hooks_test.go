package store

import (
	"errors"
	"testing"

	"udb/internal/domain"
)

func sessionWith(entities ...domain.Entity) *Session {
	sess := &Session{}
	for _, e := range entities {
		sess.items = append(sess.items, &item{entity: e})
	}
	return sess
}

func TestVrfHookRefusesDeleteWithLiveSubnet(t *testing.T) {
	vrf := &domain.Vrf{Name: "default"}
	vrf.ID = 1
	vrf.Status = domain.StatusDeleted

	subnet := &domain.Subnet{VrfID: 1}
	subnet.ID = 10
	subnet.Status = domain.StatusEnabled

	f := &Flush{session: sessionWith(vrf, subnet)}
	err := vrfHook(f, vrf)
	var ref *domain.ReferentialError
	if !errors.As(err, &ref) {
		t.Fatalf("expected ReferentialError, got %v", err)
	}
}

func TestVrfHookIgnoresNonDeletedVrf(t *testing.T) {
	vrf := &domain.Vrf{Name: "default"}
	vrf.ID = 1
	vrf.Status = domain.StatusEnabled

	subnet := &domain.Subnet{VrfID: 1}
	subnet.ID = 10
	subnet.Status = domain.StatusEnabled

	f := &Flush{session: sessionWith(vrf, subnet)}
	if err := vrfHook(f, vrf); err != nil {
		t.Fatalf("enabled vrf must pass: %v", err)
	}
}

func TestLiveSubnetRefs(t *testing.T) {
	vrf := &domain.Vrf{Name: "default"}
	vrf.ID = 1

	byID := &domain.Subnet{VrfID: 1}
	byID.ID = 10
	byID.Status = domain.StatusEnabled

	// Deleted in the same commit: tracked, but not a live reference.
	deleted := &domain.Subnet{VrfID: 1}
	deleted.ID = 11
	deleted.Status = domain.StatusDeleted

	// Staged against the vrf pointer, no id assigned yet.
	staged := &domain.Subnet{Vrf: vrf}
	staged.Status = domain.StatusEnabled

	other := &domain.Subnet{VrfID: 2}
	other.ID = 12
	other.Status = domain.StatusEnabled

	sess := sessionWith(byID, deleted, staged, other)
	live, inSession := liveSubnetRefs(sess, vrf)
	if live != 2 {
		t.Errorf("live = %d, want 2", live)
	}
	for _, id := range []uint{10, 11, 12} {
		if !inSession[id] {
			t.Errorf("id %d missing from session set", id)
		}
	}
	if inSession[0] {
		t.Error("unsaved subnet must not claim id 0")
	}
}
