// Package importer loads bulk files into the inventory: the subnet
// CSV export and DNS records in BIND AXFR text form. Each file is one
// unit of work, so a bad row aborts the whole import.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"udb/internal/domain"
	"udb/internal/store"
)

// Result reports what one import created.
type Result struct {
	Rows    int
	Created map[domain.Kind]int
}

func (r *Result) count(kind domain.Kind) {
	if r.Created == nil {
		r.Created = make(map[domain.Kind]int)
	}
	r.Created[kind]++
}

type Importer struct {
	store *store.Store
}

func New(s *store.Store) *Importer {
	return &Importer{store: s}
}

// Load dispatches on the uploaded file type.
func (im *Importer) Load(ctx context.Context, authorID *uint, typeFile string, r io.Reader) (*Result, error) {
	switch strings.ToLower(strings.TrimSpace(typeFile)) {
	case "subnet":
		return im.LoadSubnets(ctx, authorID, r)
	case "dnsrecord":
		return im.LoadDnsRecords(ctx, authorID, r)
	default:
		return nil, domain.NewValidationError("type_file", "unsupported file type %q", typeFile)
	}
}

// LoadSubnets imports the subnet CSV. Referenced vrfs and zones are
// created on the fly when no live row carries the name yet.
func (im *Importer) LoadSubnets(ctx context.Context, authorID *uint, r io.Reader) (*Result, error) {
	rows, err := parseSubnetCSV(r)
	if err != nil {
		return nil, err
	}

	sess := im.store.NewSession(authorID)
	result := &Result{Rows: len(rows)}
	vrfs := make(map[string]*domain.Vrf)
	zones := make(map[string]*domain.DnsZone)

	for _, row := range rows {
		subnet := &domain.Subnet{
			Name:        row.Name,
			L3VNI:       row.L3VNI,
			L2VNI:       row.L2VNI,
			Vlan:        row.Vlan,
			DhcpEnabled: false,
		}
		subnet.Notes = row.Description
		for _, cidr := range row.Ranges {
			subnet.Ranges = append(subnet.Ranges, domain.SubnetRange{Range: cidr})
		}

		if row.Vrf != "" {
			vrf, err := im.vrf(ctx, sess, vrfs, row.Vrf, result)
			if err != nil {
				return nil, err
			}
			subnet.Vrf = vrf
			subnet.VrfID = vrf.ID
		}
		if row.Zone != "" {
			zone, err := im.zone(ctx, sess, zones, row.Zone, result)
			if err != nil {
				return nil, err
			}
			subnet.Zones = []domain.DnsZone{*zone}
		}

		sess.Create(subnet)
		result.count(domain.KindSubnet)
	}

	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	log.Info("subnet csv imported",
		"rows", result.Rows,
		"subnets", result.Created[domain.KindSubnet],
		"vrfs", result.Created[domain.KindVrf],
		"zones", result.Created[domain.KindDnsZone])
	return result, nil
}

func (im *Importer) vrf(ctx context.Context, sess *store.Session, cache map[string]*domain.Vrf, name string, result *Result) (*domain.Vrf, error) {
	if v, ok := cache[name]; ok {
		return v, nil
	}
	var existing domain.Vrf
	err := im.store.DB().WithContext(ctx).
		Where("name = ? AND status <> ?", name, domain.StatusDeleted).
		First(&existing).Error
	switch {
	case err == nil:
		cache[name] = &existing
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		v := &domain.Vrf{Name: name}
		sess.Create(v)
		cache[name] = v
		result.count(domain.KindVrf)
		return v, nil
	default:
		return nil, err
	}
}

func (im *Importer) zone(ctx context.Context, sess *store.Session, cache map[string]*domain.DnsZone, name string, result *Result) (*domain.DnsZone, error) {
	name = strings.ToLower(name)
	if z, ok := cache[name]; ok {
		return z, nil
	}
	var existing domain.DnsZone
	err := im.store.DB().WithContext(ctx).
		Where("lower(name) = ? AND status <> ?", name, domain.StatusDeleted).
		First(&existing).Error
	switch {
	case err == nil:
		cache[name] = &existing
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		z := &domain.DnsZone{Name: name}
		sess.Create(z)
		cache[name] = z
		result.count(domain.KindDnsZone)
		return z, nil
	default:
		return nil, err
	}
}

// LoadDnsRecords imports a zone transfer in text form.
func (im *Importer) LoadDnsRecords(ctx context.Context, authorID *uint, r io.Reader) (*Result, error) {
	records, skipped, err := parseBindZone(r)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Debug("skipped unsupported zone records", "count", skipped)
	}

	sess := im.store.NewSession(authorID)
	result := &Result{Rows: len(records) + skipped}
	for _, rec := range records {
		sess.Create(rec)
		result.count(domain.KindDnsRecord)
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	log.Info("zone file imported", "records", result.Created[domain.KindDnsRecord], "skipped", skipped)
	return result, nil
}

// rowError carries the 1-based line of the offending input.
type rowError struct {
	Line int
	Err  error
}

func (e *rowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *rowError) Unwrap() error { return e.Err }
