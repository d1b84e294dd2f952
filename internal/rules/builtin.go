package rules

import (
	"fmt"

	"gorm.io/gorm"

	"udb/internal/domain"
)

// Builtin rules seeded at boot and refreshed on every start. Operators
// may disable them but not edit the statement.
var builtins = []domain.Rule{
	{
		Name:        "dnszone_without_subnet",
		Description: "DNS zones without any allowed subnet cannot hold address records",
		ModelName:   domain.KindDnsZone,
		Severity:    domain.SeveritySoft,
		Statement: `SELECT dnszones.id, dnszones.name FROM dnszones ` +
			`WHERE dnszones.status <> 0 AND NOT EXISTS ` +
			`(SELECT 1 FROM dnszone_subnets js JOIN subnets s ON s.id = js.subnet_id WHERE js.dns_zone_id = dnszones.id AND s.status <> 0)`,
	},
	{
		Name:        "subnet_without_zone",
		Description: "Subnets not allowed in any DNS zone",
		ModelName:   domain.KindSubnet,
		Severity:    domain.SeveritySoft,
		Statement: `SELECT subnets.id, subnets.name FROM subnets ` +
			`WHERE subnets.status <> 0 AND NOT EXISTS ` +
			`(SELECT 1 FROM dnszone_subnets js JOIN dnszones z ON z.id = js.dns_zone_id WHERE js.subnet_id = subnets.id AND z.status <> 0)`,
	},
	{
		Name:        "duplicate_subnet_range",
		Description: "The same range assigned to more than one live subnet",
		ModelName:   domain.KindSubnet,
		Severity:    domain.SeveritySoft,
		Statement: `SELECT subnets.id, subnets.name FROM subnets ` +
			`WHERE subnets.status <> 0 AND EXISTS ` +
			`(SELECT 1 FROM subnet_ranges r1 JOIN subnet_ranges r2 ON r1.cidr = r2.cidr AND r1.subnet_id <> r2.subnet_id ` +
			`JOIN subnets other ON other.id = r2.subnet_id AND other.status <> 0 WHERE r1.subnet_id = subnets.id)`,
	},
	{
		Name:        "dhcprecord_disabled_subnet",
		Description: "DHCP reservations whose subnet is disabled",
		ModelName:   domain.KindDhcpRecord,
		Severity:    domain.SeveritySoft,
		Statement: `SELECT dhcprecords.id, dhcprecords.ip AS name FROM dhcprecords ` +
			`WHERE dhcprecords.status <> 0 AND NOT EXISTS ` +
			`(SELECT 1 FROM subnets s JOIN subnet_ranges r ON r.subnet_id = s.id ` +
			`WHERE s.status = 2 AND s.dhcp_enabled AND r.cidr::inet >>= dhcprecords.ip::inet)`,
	},
}

// SeedBuiltins upserts the builtin rules by name. Existing rows keep
// their status so a disabled builtin stays disabled across restarts.
func SeedBuiltins(db *gorm.DB) error {
	for i := range builtins {
		rule := builtins[i]
		rule.Builtin = true
		rule.Status = domain.StatusEnabled
		rule.Summary = rule.Name

		var existing domain.Rule
		err := db.Where("name = ?", rule.Name).First(&existing).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			if err := db.Create(&rule).Error; err != nil {
				return fmt.Errorf("failed to seed rule %q: %w", rule.Name, err)
			}
		case err != nil:
			return err
		default:
			err = db.Model(&existing).
				Updates(map[string]any{
					"description": rule.Description,
					"statement":   rule.Statement,
					"model_name":  rule.ModelName,
					"severity":    rule.Severity,
					"builtin":     true,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to refresh rule %q: %w", rule.Name, err)
			}
		}
	}
	return nil
}
