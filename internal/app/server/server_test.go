package server

import (
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"udb/internal/domain"
)

func TestJsonForm(t *testing.T) {
	body := `{"name":"printers","vrf_id":3,"dhcp":true,"owner_id":null,"ranges":["10.0.0.0/24","2a07:6b40::/64"]}`
	r := httptest.NewRequest("POST", "/api/subnets/", strings.NewReader(body))

	form, err := jsonForm(r)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"name":     "printers",
		"vrf_id":   "3",
		"dhcp":     "true",
		"owner_id": "",
		"ranges":   "10.0.0.0/24,2a07:6b40::/64",
	}
	for key, expected := range want {
		if got := form.Get(key); got != expected {
			t.Errorf("form[%s] = %q, want %q", key, got, expected)
		}
	}
}

func TestJsonFormRejectsBadBodies(t *testing.T) {
	for _, body := range []string{"", "not json", `{"nested":{"a":1}}`} {
		r := httptest.NewRequest("POST", "/api/subnets/", strings.NewReader(body))
		if _, err := jsonForm(r); err == nil {
			t.Errorf("body %q accepted", body)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{"a\nb\r\nc", []string{"a", "b", "c"}},
		{" 10.0.0.0/8 , 2a07:6b40::/32 ", []string{"10.0.0.0/8", "2a07:6b40::/32"}},
		{",,", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsTrue(t *testing.T) {
	for _, s := range []string{"1", "true", "on", "yes"} {
		if !isTrue(s) {
			t.Errorf("isTrue(%q) = false", s)
		}
	}
	for _, s := range []string{"", "0", "false", "off"} {
		if isTrue(s) {
			t.Errorf("isTrue(%q) = true", s)
		}
	}
}

func TestCanWrite(t *testing.T) {
	tests := []struct {
		role string
		kind domain.Kind
		want bool
	}{
		{domain.RoleAdmin, domain.KindUser, true},
		{domain.RoleAdmin, domain.KindRule, true},
		{domain.RoleDnsZoneMgmt, domain.KindDnsZone, true},
		{domain.RoleDnsZoneMgmt, domain.KindSubnet, false},
		{domain.RoleSubnetMgmt, domain.KindSubnet, true},
		{domain.RoleSubnetMgmt, domain.KindDnsZone, false},
		{domain.RoleUser, domain.KindDnsRecord, true},
		{domain.RoleUser, domain.KindVrf, false},
		{domain.RoleGuest, domain.KindDnsRecord, false},
	}
	for _, tt := range tests {
		u := &domain.User{Role: tt.role}
		if got := canWrite(u, tt.kind); got != tt.want {
			t.Errorf("canWrite(%s, %s) = %v, want %v", tt.role, tt.kind, got, tt.want)
		}
	}
	if canWrite(nil, domain.KindVrf) {
		t.Error("nil user must not write")
	}
}

func TestListParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/subnets/data.json?q=printer&address=10.1.2.3&deleted=1&status=2&owner=7&limit=50&offset=100", nil)
	filter, paging, err := listParams(r)
	if err != nil {
		t.Fatal(err)
	}
	if filter.Substring != "printer" || filter.ContainsAddr != "10.1.2.3" || !filter.IncludeDeleted {
		t.Errorf("filter = %+v", filter)
	}
	if filter.Status == nil || *filter.Status != domain.StatusEnabled {
		t.Errorf("status = %v", filter.Status)
	}
	if filter.OwnerID == nil || *filter.OwnerID != 7 {
		t.Errorf("owner = %v", filter.OwnerID)
	}
	if paging.Limit != 50 || paging.Offset != 100 {
		t.Errorf("paging = %+v", paging)
	}

	r = httptest.NewRequest("GET", "/subnets/data.json?status=abc", nil)
	if _, _, err := listParams(r); err == nil {
		t.Error("invalid status accepted")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:49152"
	if got := clientIP(r); got != "192.0.2.10" {
		t.Errorf("clientIP = %q", got)
	}
	r.RemoteAddr = "192.0.2.10"
	if got := clientIP(r); got != "192.0.2.10" {
		t.Errorf("clientIP without port = %q", got)
	}
}
