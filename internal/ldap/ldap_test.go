package ldap

import (
	"testing"

	"udb/internal/domain"
)

func TestMapRole(t *testing.T) {
	c := New(Config{
		URI:               "ldap://localhost:389",
		AdminGroups:       []string{"udb-admin"},
		DnsZoneMgmtGroups: []string{"cn=dns-ops,ou=groups,dc=example,dc=com"},
		UserGroups:        []string{"staff"},
	})

	tests := []struct {
		name   string
		groups []string
		want   string
	}{
		{"no membership", nil, domain.RoleGuest},
		{"plain cn match", []string{"cn=udb-admin,ou=groups,dc=example,dc=com"}, domain.RoleAdmin},
		{"full dn match", []string{"cn=dns-ops,ou=groups,dc=example,dc=com"}, domain.RoleDnsZoneMgmt},
		{"broadest wins", []string{"cn=staff,ou=groups,dc=example,dc=com", "cn=udb-admin,ou=groups,dc=example,dc=com"}, domain.RoleAdmin},
		{"case insensitive", []string{"cn=Staff,ou=groups,dc=example,dc=com"}, domain.RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.mapRole(tt.groups); got != tt.want {
				t.Errorf("mapRole(%v) = %q, want %q", tt.groups, got, tt.want)
			}
		})
	}
}

func TestMemberOf(t *testing.T) {
	groups := []string{"cn=udb-admin,ou=groups,dc=example,dc=com"}
	if !memberOf(groups, "udb-admin") {
		t.Error("expected cn match")
	}
	if !memberOf(groups, "cn=udb-admin,ou=groups,dc=example,dc=com") {
		t.Error("expected dn match")
	}
	if memberOf(groups, "udb-user") {
		t.Error("unexpected match")
	}
}

func TestDisabledWithoutURI(t *testing.T) {
	if New(Config{}).Enabled() {
		t.Error("client without uri must be disabled")
	}
}
