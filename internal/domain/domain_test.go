package domain

import (
	"errors"
	"testing"
)

func validationField(t *testing.T, err error) string {
	t.Helper()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return v.Field
}

func TestDnsRecordValidate(t *testing.T) {
	tests := []struct {
		name      string
		record    DnsRecord
		wantField string
	}{
		{"valid A", DnsRecord{Name: "foo.bfh.ch", Type: "A", Value: "147.87.250.3"}, ""},
		{"valid AAAA", DnsRecord{Name: "foo.bfh.ch", Type: "AAAA", Value: "2a07:6b40::1"}, ""},
		{"A with ipv6", DnsRecord{Name: "foo.bfh.ch", Type: "A", Value: "2a07:6b40::1"}, "value"},
		{"AAAA with ipv4", DnsRecord{Name: "foo.bfh.ch", Type: "AAAA", Value: "147.87.250.3"}, "value"},
		{"unknown type", DnsRecord{Name: "foo.bfh.ch", Type: "BOGUS", Value: "x"}, "type"},
		{"empty name", DnsRecord{Type: "A", Value: "1.2.3.4"}, "name"},
		{"ptr outside arpa", DnsRecord{Name: "foo.bfh.ch", Type: "PTR", Value: "bar.bfh.ch"}, "name"},
		{"ptr in-addr", DnsRecord{Name: "3.250.87.147.in-addr.arpa", Type: "PTR", Value: "foo.bfh.ch"}, ""},
		{"negative ttl", DnsRecord{Name: "foo.bfh.ch", Type: "A", Value: "1.2.3.4", TTL: -1}, "ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if got := validationField(t, err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestDnsRecordValidateCanonicalises(t *testing.T) {
	r := DnsRecord{Name: "Foo.BFH.ch.", Type: "a", Value: " 147.87.250.3 "}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.Name != "foo.bfh.ch" || r.Type != "A" || r.Value != "147.87.250.3" {
		t.Errorf("not canonicalised: %+v", r)
	}
}

func TestSubnetValidate(t *testing.T) {
	subnet := func(ranges ...string) Subnet {
		s := Subnet{VrfID: 1}
		for _, r := range ranges {
			s.Ranges = append(s.Ranges, SubnetRange{Range: r})
		}
		return s
	}

	s := subnet("10.0.0.0/8", "2a07:6b40::/32")
	if err := s.Validate(); err != nil {
		t.Errorf("mixed-family subnet rejected: %v", err)
	}

	s = subnet("10.0.0.0/8", "10.1.0.0/16")
	if got := validationField(t, s.Validate()); got != "ranges" {
		t.Errorf("overlap not caught, field %q", got)
	}

	s = subnet()
	if got := validationField(t, s.Validate()); got != "ranges" {
		t.Errorf("empty ranges not caught, field %q", got)
	}

	s = subnet("10.0.0.0/8")
	s.VrfID = 0
	if got := validationField(t, s.Validate()); got != "vrf" {
		t.Errorf("missing vrf not caught, field %q", got)
	}

	s = subnet("10.0.0.0/8")
	s.Vlan = -2
	if err := s.Validate(); err == nil {
		t.Error("negative vlan accepted")
	}
}

func TestDnsZoneValidate(t *testing.T) {
	z := DnsZone{Name: " BFH.Info "}
	if err := z.Validate(); err != nil {
		t.Fatal(err)
	}
	if z.Name != "bfh.info" {
		t.Errorf("zone name not lowercased: %q", z.Name)
	}

	for _, bad := range []string{"", ".bfh.ch", "bfh.ch.", "bfh..ch"} {
		z := DnsZone{Name: bad}
		if err := z.Validate(); err == nil {
			t.Errorf("zone %q accepted", bad)
		}
	}
}

func TestDhcpRecordValidateCanonicalises(t *testing.T) {
	r := DhcpRecord{IP: "1.2.3.4", Mac: "02:42:D7:E4:AA:59"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.Mac != "02:42:d7:e4:aa:59" {
		t.Errorf("mac not lowercased: %q", r.Mac)
	}
	if r.DisplayName() != "1.2.3.4 = 02:42:d7:e4:aa:59" {
		t.Errorf("unexpected display name %q", r.DisplayName())
	}
}

func TestUserValidate(t *testing.T) {
	u := User{Username: "pdupont"}
	if err := u.Validate(); err != nil {
		t.Fatal(err)
	}
	if u.Role != RoleGuest {
		t.Errorf("empty role must default to guest, got %q", u.Role)
	}

	u = User{Username: "pdupont", Email: "not-an-email"}
	if got := validationField(t, u.Validate()); got != "email" {
		t.Errorf("bad email not caught, field %q", got)
	}

	u = User{Username: "pdupont", Role: "superuser"}
	if got := validationField(t, u.Validate()); got != "role" {
		t.Errorf("unknown role not caught, field %q", got)
	}
}

func TestUserHasRole(t *testing.T) {
	tests := []struct {
		role string
		want string
		ok   bool
	}{
		{RoleAdmin, RoleDnsZoneMgmt, true},
		{RoleAdmin, RoleGuest, true},
		{RoleDnsZoneMgmt, RoleUser, true},
		{RoleDnsZoneMgmt, RoleSubnetMgmt, false},
		{RoleSubnetMgmt, RoleDnsZoneMgmt, false},
		{RoleUser, RoleGuest, true},
		{RoleGuest, RoleUser, false},
	}
	for _, tt := range tests {
		u := User{Role: tt.role}
		if got := u.HasRole(tt.want); got != tt.ok {
			t.Errorf("HasRole(%s -> %s) = %v, want %v", tt.role, tt.want, got, tt.ok)
		}
	}
}

func TestMessageChangeSetRoundTrip(t *testing.T) {
	var m Message
	cs := ChangeSet{"name": {"old", "new"}, "vlan": {nil, float64(10)}}
	if err := m.SetChangeSet(cs); err != nil {
		t.Fatal(err)
	}
	got := m.ChangeSet()
	if len(got) != 2 || got["name"][1] != "new" {
		t.Errorf("round trip lost data: %v", got)
	}

	m = Message{}
	if m.ChangeSet() != nil {
		t.Error("empty changes must decode to nil")
	}
}

func TestNetworkID(t *testing.T) {
	if NetworkIDUndefined.Defined() {
		t.Error("undefined must not be defined")
	}
	if v, ok := NetworkID(10).Value(); !ok || v != 10 {
		t.Errorf("Value() = %d, %v", v, ok)
	}
	if _, ok := NetworkIDUndefined.Value(); ok {
		t.Error("undefined must have no value")
	}
}
