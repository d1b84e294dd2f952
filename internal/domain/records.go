package domain

import (
	"fmt"
	"strings"

	"udb/internal/ipam"
)

// DnsRecordTypes is the closed set of accepted record types.
var DnsRecordTypes = []string{"A", "AAAA", "PTR", "CNAME", "NS", "MX", "TXT", "SOA", "SRV", "CAA"}

// DnsRecord is a single resource record. Relational checks (zone
// existence, subnet containment, CNAME exclusivity) run in the flush
// pipeline where the database is available.
type DnsRecord struct {
	Base
	Name  string `gorm:"not null;size:255" json:"name"`
	Type  string `gorm:"not null;size:10" json:"type"`
	Value string `gorm:"not null" json:"value"`
	TTL   int    `gorm:"not null;default:3600" json:"ttl"`
}

func (DnsRecord) TableName() string { return "dnsrecords" }
func (r *DnsRecord) Kind() Kind     { return KindDnsRecord }

func (r *DnsRecord) DisplayName() string {
	return fmt.Sprintf("%s = %s(%s)", r.Name, r.Value, r.Type)
}

func (r *DnsRecord) Fields() map[string]any {
	return map[string]any{
		"name":     r.Name,
		"type":     r.Type,
		"value":    r.Value,
		"ttl":      r.TTL,
		"notes":    r.Notes,
		"status":   r.Status.String(),
		"owner_id": refValue(r.OwnerID),
	}
}

func (r *DnsRecord) Validate() error {
	r.Name = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(r.Name, ".")))
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	r.Value = strings.TrimSpace(r.Value)

	if r.Name == "" {
		return NewValidationError("name", "name is required")
	}
	found := false
	for _, t := range DnsRecordTypes {
		if r.Type == t {
			found = true
			break
		}
	}
	if !found {
		return NewValidationError("type", "unsupported record type %q", r.Type)
	}
	if r.Value == "" {
		return NewValidationError("value", "value is required")
	}
	if r.TTL < 0 {
		return NewValidationError("ttl", "ttl must be positive")
	}

	switch r.Type {
	case "A":
		addr, err := ipam.ParseAddr(r.Value)
		if err != nil || addr.Family() != 4 {
			return NewValidationError("value", "A record requires an IPv4 address")
		}
	case "AAAA":
		addr, err := ipam.ParseAddr(r.Value)
		if err != nil || addr.Family() != 6 {
			return NewValidationError("value", "AAAA record requires an IPv6 address")
		}
	case "PTR":
		if !strings.HasSuffix(r.Name, ".in-addr.arpa") && !strings.HasSuffix(r.Name, ".ip6.arpa") {
			return NewValidationError("name", "PTR record must be defined under in-addr.arpa or ip6.arpa")
		}
	}
	return nil
}

// Addr returns the address carried by an A/AAAA record, or the address
// a PTR name reverses to. The zero Addr means the record carries none.
func (r *DnsRecord) Addr() ipam.Addr {
	switch r.Type {
	case "A", "AAAA":
		addr, err := ipam.ParseAddr(r.Value)
		if err != nil {
			return ipam.Addr{}
		}
		return addr
	}
	return ipam.Addr{}
}

func (r *DnsRecord) SearchString() string {
	return strings.Join([]string{r.Name, r.Type, r.Value, r.Notes}, " ")
}

// DhcpRecord is a static (ip, mac) reservation. The pair is unique among
// non-deleted rows; the ip must lie in a dhcp-enabled subnet.
type DhcpRecord struct {
	Base
	IP  string `gorm:"not null;size:45;column:ip" json:"ip"`
	Mac string `gorm:"not null;size:17" json:"mac"`
}

func (DhcpRecord) TableName() string { return "dhcprecords" }
func (r *DhcpRecord) Kind() Kind     { return KindDhcpRecord }

func (r *DhcpRecord) DisplayName() string {
	return fmt.Sprintf("%s = %s", r.IP, r.Mac)
}

func (r *DhcpRecord) Fields() map[string]any {
	return map[string]any{
		"ip":       r.IP,
		"mac":      r.Mac,
		"notes":    r.Notes,
		"status":   r.Status.String(),
		"owner_id": refValue(r.OwnerID),
	}
}

func (r *DhcpRecord) Validate() error {
	addr, err := ipam.ParseAddr(r.IP)
	if err != nil {
		return NewValidationError("ip", "invalid IP address %q", r.IP)
	}
	r.IP = addr.String()
	mac, err := ipam.ParseMac(r.Mac)
	if err != nil {
		return NewValidationError("mac", "invalid MAC address %q", r.Mac)
	}
	r.Mac = mac.String()
	return nil
}

func (r *DhcpRecord) SearchString() string {
	return strings.Join([]string{r.IP, r.Mac, r.Notes}, " ")
}

// Ip is the synthesised aggregate row behind every referenced address.
// Rows are created on first reference and never removed; orphans show a
// zero reference count.
type Ip struct {
	Base
	Value string `gorm:"not null;size:45;uniqueIndex" json:"value"`
}

func (Ip) TableName() string      { return "ips" }
func (i *Ip) Kind() Kind          { return KindIp }
func (i *Ip) DisplayName() string { return i.Value }

func (i *Ip) Fields() map[string]any {
	return map[string]any{
		"value":    i.Value,
		"notes":    i.Notes,
		"status":   i.Status.String(),
		"owner_id": refValue(i.OwnerID),
	}
}

func (i *Ip) Validate() error {
	addr, err := ipam.ParseAddr(i.Value)
	if err != nil {
		return NewValidationError("value", "invalid IP address %q", i.Value)
	}
	i.Value = addr.String()
	return nil
}

// Mac is the synthesised aggregate row behind every referenced hardware
// address.
type Mac struct {
	Base
	Value string `gorm:"not null;size:17;uniqueIndex" json:"value"`
}

func (Mac) TableName() string      { return "macs" }
func (m *Mac) Kind() Kind          { return KindMac }
func (m *Mac) DisplayName() string { return m.Value }

func (m *Mac) Fields() map[string]any {
	return map[string]any{
		"value":    m.Value,
		"notes":    m.Notes,
		"status":   m.Status.String(),
		"owner_id": refValue(m.OwnerID),
	}
}

func (m *Mac) Validate() error {
	mac, err := ipam.ParseMac(m.Value)
	if err != nil {
		return NewValidationError("value", "invalid MAC address %q", m.Value)
	}
	m.Value = mac.String()
	return nil
}
