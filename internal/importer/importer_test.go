package importer

import (
	"strings"
	"testing"

	"udb/internal/domain"
)

const sampleCSV = `IPv6,IPv4,VRF,L3VNI,L2VNI,VLAN,TLD,Name,Description
2a07:6b40::/32 ,,infra,,,,,Infra,
2a07:6b40:0::/48,,client,14,,,bfh.info,all-anycast-infra,anycast
2a07:6b40:0::/48,,infra,10,,,bfh.info,all-anycast-infra,anycast
`

func TestParseSubnetCSV(t *testing.T) {
	rows, err := parseSubnetCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	first := rows[0]
	if len(first.Ranges) != 1 || first.Ranges[0] != "2a07:6b40::/32" {
		t.Errorf("trailing space not trimmed: %v", first.Ranges)
	}
	if first.Vrf != "infra" || first.Name != "Infra" {
		t.Errorf("unexpected first row %+v", first)
	}
	if first.L3VNI != domain.NetworkIDUndefined {
		t.Errorf("empty L3VNI must be undefined, got %d", first.L3VNI)
	}

	second := rows[1]
	if second.L3VNI != 14 || second.Zone != "bfh.info" || second.Description != "anycast" {
		t.Errorf("unexpected second row %+v", second)
	}

	// Two distinct vrfs across the file.
	vrfs := map[string]bool{}
	for _, r := range rows {
		vrfs[r.Vrf] = true
	}
	if len(vrfs) != 2 {
		t.Errorf("expected 2 vrfs, got %v", vrfs)
	}
}

func TestParseSubnetCSVColumnOrderIndependent(t *testing.T) {
	in := "Name,VRF,IPv6\nlan,default,10.0.0.0/8\n"
	// IPv6 column may in practice carry an IPv4 range; the parser does
	// not care, validation happens at commit.
	rows, err := parseSubnetCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Name != "lan" || rows[0].Ranges[0] != "10.0.0.0/8" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestParseSubnetCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing header column", "IPv6,IPv4\n2a07::/32,\n"},
		{"row without range", "IPv6,IPv4,VRF,Name\n,,infra,lan\n"},
		{"bad vni", "IPv6,VRF,L3VNI,Name\n2a07::/32,infra,abc,lan\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseSubnetCSV(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseBindZone(t *testing.T) {
	in := `$ORIGIN bfh.ch.
; comment line
bfh.ch.           3600 IN SOA  ns1.bfh.ch. hostmaster.bfh.ch. 1 2 3 4 5
bfh.ch.           3600 IN NS   ns1.bfh.ch.
foo.bfh.ch.       300  IN A    147.87.250.3
bar.bfh.ch.            IN AAAA 2a07:6b40::1
alias.bfh.ch.     3600 IN CNAME foo.bfh.ch.
txt.bfh.ch.       3600 IN TXT  "v=spf1 -all"
sig.bfh.ch.       3600 IN RRSIG A 8 3 300 xxx
`
	records, skipped, err := parseBindZone(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 2 { // SOA and RRSIG
		t.Errorf("expected 2 skipped, got %d", skipped)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}

	byName := map[string]*domain.DnsRecord{}
	for _, r := range records {
		byName[r.Name+"/"+r.Type] = r
	}
	if r := byName["foo.bfh.ch/A"]; r == nil || r.TTL != 300 || r.Value != "147.87.250.3" {
		t.Errorf("unexpected A record %+v", r)
	}
	if r := byName["bar.bfh.ch/AAAA"]; r == nil || r.TTL != 3600 {
		t.Errorf("missing ttl default on %+v", r)
	}
	if r := byName["alias.bfh.ch/CNAME"]; r == nil || r.Value != "foo.bfh.ch" {
		t.Errorf("CNAME target dot not trimmed: %+v", r)
	}
	if r := byName["txt.bfh.ch/TXT"]; r == nil || r.Value != "v=spf1 -all" {
		t.Errorf("TXT quotes not trimmed: %+v", r)
	}
}

func TestParseBindZoneMalformed(t *testing.T) {
	if _, _, err := parseBindZone(strings.NewReader("foo.bfh.ch. IN\n")); err == nil {
		t.Error("expected error for truncated record")
	}
}
