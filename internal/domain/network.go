package domain

import (
	"sort"
	"strings"

	"udb/internal/ipam"
)

// Vrf is a routing-table namespace. Name is unique among non-deleted
// rows; deletion is refused while a live Subnet references it.
type Vrf struct {
	Base
	Name string `gorm:"not null;size:255" json:"name"`
}

func (Vrf) TableName() string     { return "vrfs" }
func (v *Vrf) Kind() Kind         { return KindVrf }
func (v *Vrf) DisplayName() string { return v.Name }

func (v *Vrf) Fields() map[string]any {
	return map[string]any{
		"name":     v.Name,
		"notes":    v.Notes,
		"status":   v.Status.String(),
		"owner_id": refValue(v.OwnerID),
	}
}

func (v *Vrf) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	return nil
}

func (v *Vrf) SearchString() string {
	return v.Name + " " + v.Notes
}

// SubnetRange is one CIDR range of a subnet. The range string is kept in
// canonical prefix form.
type SubnetRange struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SubnetID uint   `gorm:"index;not null" json:"subnet_id"`
	Range    string `gorm:"column:cidr;size:64;not null" json:"range"`
}

func (SubnetRange) TableName() string { return "subnet_ranges" }

// Subnet is a named set of CIDR ranges inside a Vrf.
type Subnet struct {
	Base
	Name        string        `gorm:"not null;size:255" json:"name"`
	VrfID       uint          `gorm:"index;not null" json:"vrf_id"`
	Vrf         *Vrf          `gorm:"foreignKey:VrfID" json:"-"`
	Ranges      []SubnetRange `gorm:"foreignKey:SubnetID" json:"ranges"`
	L3VNI       NetworkID     `gorm:"not null;default:-1" json:"l3vni"`
	L2VNI       NetworkID     `gorm:"not null;default:-1" json:"l2vni"`
	Vlan        NetworkID     `gorm:"not null;default:-1" json:"vlan"`
	DhcpEnabled bool          `gorm:"not null;default:false" json:"dhcp"`
	Zones       []DnsZone     `gorm:"many2many:dnszone_subnets" json:"-"`
}

func (Subnet) TableName() string { return "subnets" }
func (s *Subnet) Kind() Kind     { return KindSubnet }

func (s *Subnet) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Ranges) > 0 {
		return s.Ranges[0].Range
	}
	return ""
}

// RangeStrings returns the ranges sorted by address then prefix length.
func (s *Subnet) RangeStrings() []string {
	cidrs := make([]ipam.Cidr, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		c, err := ipam.ParseCidrNormalize(r.Range)
		if err != nil {
			continue
		}
		cidrs = append(cidrs, c)
	}
	sort.Slice(cidrs, func(i, j int) bool { return cidrs[i].Compare(cidrs[j]) < 0 })
	out := make([]string, len(cidrs))
	for i, c := range cidrs {
		out[i] = c.String()
	}
	return out
}

func (s *Subnet) ZoneNames() []string {
	names := make([]string, 0, len(s.Zones))
	for _, z := range s.Zones {
		names = append(names, z.Name)
	}
	sort.Strings(names)
	return names
}

func (s *Subnet) Fields() map[string]any {
	return map[string]any{
		"name":     s.Name,
		"vrf_id":   s.VrfID,
		"ranges":   strings.Join(s.RangeStrings(), ", "),
		"l3vni":    int64(s.L3VNI),
		"l2vni":    int64(s.L2VNI),
		"vlan":     int64(s.Vlan),
		"dhcp":     s.DhcpEnabled,
		"dnszones": strings.Join(s.ZoneNames(), ", "),
		"notes":    s.Notes,
		"status":   s.Status.String(),
		"owner_id": refValue(s.OwnerID),
	}
}

func (s *Subnet) Validate() error {
	if len(s.Ranges) == 0 {
		return NewValidationError("ranges", "at least one range is required")
	}
	if s.VrfID == 0 && s.Vrf == nil {
		return NewValidationError("vrf", "vrf is required")
	}
	cidrs := make([]ipam.Cidr, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		c, err := ipam.ParseCidrNormalize(r.Range)
		if err != nil {
			return NewValidationError("ranges", "invalid range %q", r.Range)
		}
		cidrs = append(cidrs, c)
	}
	// Ranges of one subnet must not overlap each other.
	for i := range cidrs {
		for j := i + 1; j < len(cidrs); j++ {
			if cidrs[i].Overlaps(cidrs[j]) {
				return NewValidationError("ranges", "ranges %s and %s overlap", cidrs[i], cidrs[j])
			}
		}
	}
	for _, n := range []NetworkID{s.L3VNI, s.L2VNI, s.Vlan} {
		if n < NetworkIDUndefined {
			return NewValidationError("vlan", "network id must be positive or undefined")
		}
	}
	return nil
}

// Contains reports whether any range of the subnet holds the address.
func (s *Subnet) Contains(a ipam.Addr) bool {
	for _, r := range s.Ranges {
		c, err := ipam.ParseCidrNormalize(r.Range)
		if err != nil {
			continue
		}
		if c.Contains(a) {
			return true
		}
	}
	return false
}

func (s *Subnet) SearchString() string {
	parts := append([]string{s.Name}, s.RangeStrings()...)
	parts = append(parts, s.Notes)
	return strings.Join(parts, " ")
}

// DnsZone is a dotted zone name, stored lowercase, unique among
// non-deleted rows.
type DnsZone struct {
	Base
	Name    string   `gorm:"not null;size:255" json:"name"`
	Subnets []Subnet `gorm:"many2many:dnszone_subnets" json:"-"`
}

func (DnsZone) TableName() string      { return "dnszones" }
func (z *DnsZone) Kind() Kind          { return KindDnsZone }
func (z *DnsZone) DisplayName() string { return z.Name }

func (z *DnsZone) Fields() map[string]any {
	names := make([]string, 0, len(z.Subnets))
	for _, s := range z.Subnets {
		names = append(names, s.DisplayName())
	}
	sort.Strings(names)
	return map[string]any{
		"name":     z.Name,
		"subnets":  strings.Join(names, ", "),
		"notes":    z.Notes,
		"status":   z.Status.String(),
		"owner_id": refValue(z.OwnerID),
	}
}

func (z *DnsZone) Validate() error {
	name := strings.ToLower(strings.TrimSpace(z.Name))
	if name == "" {
		return NewValidationError("name", "name is required")
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return NewValidationError("name", "invalid zone name %q", z.Name)
	}
	z.Name = name
	return nil
}

func (z *DnsZone) SearchString() string {
	return z.Name + " " + z.Notes
}

func refValue(id *uint) any {
	if id == nil {
		return nil
	}
	return *id
}
