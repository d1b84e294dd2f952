package server

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"udb/internal/domain"
	"udb/internal/security"
)

// bindEntity copies submitted form values onto an entity. Only keys
// present in the form are touched, so a partial submission leaves the
// other fields alone; full validation happens in the flush pipeline.
func (s *Server) bindEntity(ctx context.Context, e domain.Entity, form url.Values) error {
	if err := bindMeta(e, form); err != nil {
		return err
	}

	switch v := e.(type) {
	case *domain.Vrf:
		setString(form, "name", &v.Name)
	case *domain.DnsZone:
		setString(form, "name", &v.Name)
	case *domain.Subnet:
		return s.bindSubnet(ctx, v, form)
	case *domain.DnsRecord:
		setString(form, "name", &v.Name)
		setString(form, "type", &v.Type)
		setString(form, "value", &v.Value)
		if raw, ok := formValue(form, "ttl"); ok {
			ttl, err := strconv.Atoi(raw)
			if err != nil {
				return domain.NewValidationError("ttl", "invalid ttl %q", raw)
			}
			v.TTL = ttl
		}
	case *domain.DhcpRecord:
		setString(form, "ip", &v.IP)
		setString(form, "mac", &v.Mac)
	case *domain.User:
		setString(form, "username", &v.Username)
		setString(form, "fullname", &v.Fullname)
		setString(form, "email", &v.Email)
		setString(form, "role", &v.Role)
		if raw, ok := formValue(form, "password"); ok && raw != "" {
			hashed, err := security.HashPassword(raw)
			if err != nil {
				return err
			}
			v.Password = hashed
		}
	case *domain.Rule:
		setString(form, "name", &v.Name)
		setString(form, "description", &v.Description)
		setString(form, "statement", &v.Statement)
		if raw, ok := formValue(form, "model_name"); ok {
			v.ModelName = domain.Kind(raw)
		}
		if raw, ok := formValue(form, "severity"); ok {
			sev, err := strconv.Atoi(raw)
			if err != nil {
				return domain.NewValidationError("severity", "invalid severity %q", raw)
			}
			v.Severity = int16(sev)
		}
	case *domain.Ip, *domain.Mac:
		// Aggregates: only the meta fields (notes, owner) are editable.
	}
	return nil
}

func (s *Server) bindSubnet(ctx context.Context, subnet *domain.Subnet, form url.Values) error {
	setString(form, "name", &subnet.Name)
	if raw, ok := formValue(form, "vrf_id"); ok {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return domain.NewValidationError("vrf", "invalid vrf id %q", raw)
		}
		subnet.VrfID = uint(id)
		subnet.Vrf = nil
	}
	if raw, ok := formValue(form, "ranges"); ok {
		subnet.Ranges = nil
		for _, cidr := range splitList(raw) {
			subnet.Ranges = append(subnet.Ranges, domain.SubnetRange{Range: cidr})
		}
	}
	for _, key := range []string{"l3vni", "l2vni", "vlan"} {
		raw, ok := formValue(form, key)
		if !ok {
			continue
		}
		n := domain.NetworkIDUndefined
		if raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 0 {
				return domain.NewValidationError(key, "invalid network id %q", raw)
			}
			n = domain.NetworkID(parsed)
		}
		switch key {
		case "l3vni":
			subnet.L3VNI = n
		case "l2vni":
			subnet.L2VNI = n
		case "vlan":
			subnet.Vlan = n
		}
	}
	if raw, ok := formValue(form, "dhcp"); ok {
		subnet.DhcpEnabled = isTrue(raw)
	}
	if raw, ok := formValue(form, "dnszones"); ok {
		subnet.Zones = nil
		for _, name := range splitList(raw) {
			var zone domain.DnsZone
			err := s.DB.WithContext(ctx).
				Where("lower(name) = lower(?) AND status <> ?", name, domain.StatusDeleted).
				First(&zone).Error
			if err != nil {
				return domain.NewValidationError("dnszones", "unknown zone %q", name)
			}
			subnet.Zones = append(subnet.Zones, zone)
		}
	}
	return nil
}

func bindMeta(e domain.Entity, form url.Values) error {
	meta := e.Meta()
	if raw, ok := formValue(form, "notes"); ok {
		meta.Notes = raw
	}
	if raw, ok := formValue(form, "status"); ok {
		status, err := strconv.Atoi(raw)
		if err != nil || status < int(domain.StatusDeleted) || status > int(domain.StatusEnabled) {
			return domain.NewValidationError("status", "invalid status %q", raw)
		}
		meta.Status = domain.Status(status)
	}
	if raw, ok := formValue(form, "owner_id"); ok {
		if raw == "" {
			meta.OwnerID = nil
		} else {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return domain.NewValidationError("owner_id", "invalid owner id %q", raw)
			}
			owner := uint(id)
			meta.OwnerID = &owner
		}
	}
	return nil
}

func formValue(form url.Values, key string) (string, bool) {
	if _, ok := form[key]; !ok {
		return "", false
	}
	return strings.TrimSpace(form.Get(key)), true
}

func setString(form url.Values, key string, dst *string) {
	if raw, ok := formValue(form, key); ok {
		*dst = raw
	}
}

// splitList accepts comma or newline separated values.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	}) {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
