package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"udb/internal/domain"
	"udb/internal/ipam"
)

// RegisterDefaultHooks installs the consistency hooks of the data
// model. Called once at boot, before the first session opens.
func RegisterDefaultHooks(r *Registry) {
	r.RegisterAll(BeforeFlush, summaryHook)
	r.Register(domain.KindVrf, BeforeFlush, vrfHook)
	r.Register(domain.KindSubnet, BeforeFlush, subnetHook)
	r.Register(domain.KindDnsRecord, BeforeFlush, dnsRecordHook)
	r.Register(domain.KindDhcpRecord, BeforeFlush, dhcpRecordHook)
}

// summaryHook recomputes the derived summary column.
func summaryHook(f *Flush, e domain.Entity) error {
	e.Meta().Summary = e.DisplayName()
	return nil
}

// vrfHook refuses deleting a vrf that non-deleted subnets still
// reference, no matter which path set the status. Subnets in the same
// commit override their database rows.
func vrfHook(f *Flush, e domain.Entity) error {
	vrf := e.(*domain.Vrf)
	if vrf.Status != domain.StatusDeleted || vrf.ID == 0 {
		return nil
	}

	live, inSession := liveSubnetRefs(f.session, vrf)
	if live > 0 {
		return vrfReferencedError(live)
	}

	var rows []domain.Subnet
	err := f.Tx().Select("id").
		Where("vrf_id = ? AND status <> ?", vrf.ID, domain.StatusDeleted).
		Find(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		if !inSession[row.ID] {
			live++
		}
	}
	if live > 0 {
		return vrfReferencedError(live)
	}
	return nil
}

// liveSubnetRefs counts the working-set subnets still referencing the
// vrf and reports which subnet ids the session tracks at all, so the
// database rows they shadow are not double counted.
func liveSubnetRefs(sess *Session, vrf *domain.Vrf) (int64, map[uint]bool) {
	var live int64
	inSession := make(map[uint]bool)
	for _, it := range sess.items {
		subnet, ok := it.entity.(*domain.Subnet)
		if !ok {
			continue
		}
		if subnet.ID != 0 {
			inSession[subnet.ID] = true
		}
		refs := subnet.VrfID == vrf.ID || subnet.Vrf == vrf
		if refs && subnet.Status != domain.StatusDeleted {
			live++
		}
	}
	return live, inSession
}

func vrfReferencedError(n int64) error {
	return &domain.ReferentialError{
		Message: fmt.Sprintf("vrf is still referenced by %d subnet(s)", n),
	}
}

// subnetHook canonicalises the ranges, checks the owning vrf and
// records the parent touch a range change causes.
func subnetHook(f *Flush, e domain.Entity) error {
	subnet := e.(*domain.Subnet)

	for i, r := range subnet.Ranges {
		c, err := ipam.ParseCidrNormalize(r.Range)
		if err != nil {
			return domain.NewValidationError("ranges", "invalid range %q", r.Range)
		}
		subnet.Ranges[i].Range = c.String()
	}

	if subnet.VrfID == 0 {
		// Vrf staged in the same commit, verified by its own hooks.
		if subnet.Vrf == nil || !f.staged(subnet.Vrf) {
			return domain.NewValidationError("vrf", "vrf is required")
		}
		if rangesChanged(f, subnet) {
			f.TouchParent(domain.KindVrf, subnet.Vrf.ID,
				fmt.Sprintf("subnet %s ranges changed", subnet.DisplayName()))
		}
		return nil
	}

	var vrf domain.Vrf
	if err := f.Tx().First(&vrf, subnet.VrfID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewValidationError("vrf", "vrf does not exist")
		}
		return err
	}
	if vrf.Status == domain.StatusDeleted {
		return domain.NewValidationError("vrf", "vrf %q is deleted", vrf.Name)
	}

	if rangesChanged(f, subnet) {
		f.TouchParent(domain.KindVrf, subnet.VrfID,
			fmt.Sprintf("subnet %s ranges changed", subnet.DisplayName()))
	}
	return nil
}

func rangesChanged(f *Flush, subnet *domain.Subnet) bool {
	snap := f.Snapshot(subnet)
	if snap == nil {
		return true
	}
	before, _ := snap["ranges"].(string)
	return before != strings.Join(subnet.RangeStrings(), ", ")
}

// dnsRecordHook enforces the zone invariants and materialises the Ip
// aggregate of address-valued records.
func dnsRecordHook(f *Flush, e domain.Entity) error {
	record := e.(*domain.DnsRecord)
	if record.Status == domain.StatusDeleted {
		return nil
	}
	tx := f.Tx()

	zone, err := matchZone(tx, record.Name)
	if err != nil {
		return err
	}
	if zone == nil {
		return domain.NewValidationError("name", "no non-deleted zone matches %q", record.Name)
	}

	if addr := record.Addr(); addr.IsValid() {
		var zoneWithSubnets domain.DnsZone
		if err := tx.Preload("Subnets").First(&zoneWithSubnets, zone.ID).Error; err != nil {
			return err
		}
		contained := false
		for i := range zoneWithSubnets.Subnets {
			subnet := &zoneWithSubnets.Subnets[i]
			if subnet.Status == domain.StatusDeleted {
				continue
			}
			if err := tx.Where("subnet_id = ?", subnet.ID).Find(&subnet.Ranges).Error; err != nil {
				return err
			}
			if subnet.Contains(addr) {
				contained = true
				break
			}
		}
		if !contained {
			return domain.NewValidationError("value",
				"address %s is not in an allowed subnet of zone %s", addr, zone.Name)
		}

		if err := materialiseIp(f, addr.String()); err != nil {
			return err
		}
	}

	// A CNAME owns its name exclusively.
	var clash int64
	q := tx.Table("dnsrecords").Where("status <> ? AND lower(name) = ? AND id <> ?",
		domain.StatusDeleted, strings.ToLower(record.Name), record.ID)
	if record.Type == "CNAME" {
		err = q.Count(&clash).Error
	} else {
		err = q.Where("type = 'CNAME'").Count(&clash).Error
	}
	if err != nil {
		return err
	}
	if clash > 0 {
		return domain.NewValidationError("name",
			"CNAME record cannot coexist with another record named %q", record.Name)
	}
	return nil
}

// matchZone finds the non-deleted zone whose name is the longest suffix
// of the record name.
func matchZone(tx *gorm.DB, name string) (*domain.DnsZone, error) {
	var zones []domain.DnsZone
	if err := tx.Where("status <> ?", domain.StatusDeleted).Find(&zones).Error; err != nil {
		return nil, err
	}
	name = strings.ToLower(name)
	var best *domain.DnsZone
	for i := range zones {
		zone := zones[i].Name
		if name != zone && !strings.HasSuffix(name, "."+zone) {
			continue
		}
		if best == nil || len(zone) > len(best.Name) {
			best = &zones[i]
		}
	}
	return best, nil
}

// dhcpRecordHook enforces dhcp subnet containment and materialises the
// Ip and Mac aggregates.
func dhcpRecordHook(f *Flush, e domain.Entity) error {
	record := e.(*domain.DhcpRecord)
	if record.Status == domain.StatusDeleted {
		return nil
	}
	tx := f.Tx()

	addr, err := ipam.ParseAddr(record.IP)
	if err != nil {
		return domain.NewValidationError("ip", "invalid IP address %q", record.IP)
	}

	var subnets []domain.Subnet
	if err := tx.Preload("Ranges").
		Where("status <> ? AND dhcp_enabled", domain.StatusDeleted).
		Find(&subnets).Error; err != nil {
		return err
	}
	contained := false
	for i := range subnets {
		if subnets[i].Contains(addr) {
			contained = true
			break
		}
	}
	if !contained {
		return domain.NewValidationError("ip",
			"address %s is not in any dhcp-enabled subnet", record.IP)
	}

	if err := materialiseIp(f, record.IP); err != nil {
		return err
	}
	return materialiseMac(f, record.Mac)
}

// materialiseIp makes sure the aggregate Ip row behind an address
// exists, staging it when first referenced.
func materialiseIp(f *Flush, value string) error {
	for _, it := range f.session.items {
		if ip, ok := it.entity.(*domain.Ip); ok && ip.Value == value {
			f.TouchParent(domain.KindIp, ip.ID, "")
			return nil
		}
	}
	var existing domain.Ip
	err := f.Tx().Where("value = ?", value).First(&existing).Error
	if err == nil {
		f.TouchParent(domain.KindIp, existing.ID, "")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	f.Stage(&domain.Ip{Value: value})
	return nil
}

func materialiseMac(f *Flush, value string) error {
	for _, it := range f.session.items {
		if mac, ok := it.entity.(*domain.Mac); ok && mac.Value == value {
			f.TouchParent(domain.KindMac, mac.ID, "")
			return nil
		}
	}
	var existing domain.Mac
	err := f.Tx().Where("value = ?", value).First(&existing).Error
	if err == nil {
		f.TouchParent(domain.KindMac, existing.ID, "")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	f.Stage(&domain.Mac{Value: value})
	return nil
}
