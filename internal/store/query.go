package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"udb/internal/domain"
)

// Filter narrows a Query. The zero value hides soft-deleted rows.
type Filter struct {
	// IncludeDeleted also returns rows with status deleted.
	IncludeDeleted bool
	// Status, when set, matches exactly one status.
	Status *domain.Status
	// OwnerID matches rows owned by one user.
	OwnerID *uint
	// Substring matches case-insensitively against summary and notes.
	Substring string
	// ContainsAddr keeps subnets holding the address, or ip/dhcp rows
	// equal to it. The value must parse as an IP address.
	ContainsAddr string
}

// Paging bounds a Query.
type Paging struct {
	Offset int
	Limit  int
}

// Query lists entities of one kind. Soft-deleted rows are hidden unless
// the filter asks for them.
func (s *Store) Query(ctx context.Context, kind domain.Kind, filter Filter, paging Paging) ([]domain.Entity, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q: %w", kind, domain.ErrNotFound)
	}

	q := s.db.WithContext(ctx).Table(kind.TableName())
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	} else if !filter.IncludeDeleted {
		q = q.Where("status <> ?", domain.StatusDeleted)
	}
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Substring != "" {
		pattern := "%" + filter.Substring + "%"
		q = q.Where("summary ILIKE ? OR notes ILIKE ?", pattern, pattern)
	}
	if filter.ContainsAddr != "" {
		switch kind {
		case domain.KindSubnet:
			q = q.Where("id IN (SELECT subnet_id FROM subnet_ranges WHERE cidr::inet >>= ?::inet)", filter.ContainsAddr)
		case domain.KindDhcpRecord:
			q = q.Where("ip = ?", filter.ContainsAddr)
		case domain.KindIp:
			q = q.Where("value = ?", filter.ContainsAddr)
		case domain.KindDnsRecord:
			q = q.Where("type IN ('A', 'AAAA') AND value = ?", filter.ContainsAddr)
		}
	}
	if paging.Limit > 0 {
		q = q.Limit(paging.Limit)
	}
	if paging.Offset > 0 {
		q = q.Offset(paging.Offset)
	}

	slice := info.newSlice()
	if err := q.Order("id").Find(slice).Error; err != nil {
		return nil, err
	}
	entities := info.entities(slice)

	if kind == domain.KindSubnet {
		for _, e := range entities {
			subnet := e.(*domain.Subnet)
			if err := s.db.WithContext(ctx).Where("subnet_id = ?", subnet.ID).Find(&subnet.Ranges).Error; err != nil {
				return nil, err
			}
		}
	}
	return entities, nil
}

// IpRow is an Ip aggregate together with its live reference count.
type IpRow struct {
	domain.Ip
	Count int64 `json:"count"`
}

// IpRows lists every Ip aggregate with the number of non-deleted
// records still referencing it. Orphan rows show count zero.
func (s *Store) IpRows(ctx context.Context) ([]IpRow, error) {
	var rows []IpRow
	err := s.db.WithContext(ctx).
		Table("ips").
		Select(`ips.*,
			(SELECT count(*) FROM dnsrecords d WHERE d.status <> 0 AND d.type IN ('A', 'AAAA') AND d.value = ips.value) +
			(SELECT count(*) FROM dhcprecords h WHERE h.status <> 0 AND h.ip = ips.value) AS count`).
		Order("ips.id").
		Scan(&rows).Error
	return rows, err
}

// MacRow is a Mac aggregate together with its live reference count.
type MacRow struct {
	domain.Mac
	Count int64 `json:"count"`
}

func (s *Store) MacRows(ctx context.Context) ([]MacRow, error) {
	var rows []MacRow
	err := s.db.WithContext(ctx).
		Table("macs").
		Select(`macs.*,
			(SELECT count(*) FROM dhcprecords h WHERE h.status <> 0 AND h.mac = macs.value) AS count`).
		Order("macs.id").
		Scan(&rows).Error
	return rows, err
}

// Messages returns the audit trail of one entity, ordered by date then
// insertion id.
func (s *Store) Messages(ctx context.Context, kind domain.Kind, id uint) ([]domain.Message, error) {
	var msgs []domain.Message
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("model_name = ? AND model_id = ?", kind, id).
		Order("date, id").
		Find(&msgs).Error
	return msgs, err
}

// Follow subscribes a user to an entity, deduplicated.
func (s *Store) Follow(ctx context.Context, userID uint, kind domain.Kind, id uint) error {
	var existing domain.Follower
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND model_name = ? AND model_id = ?", userID, kind, id).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.db.WithContext(ctx).Create(&domain.Follower{
		UserID:    userID,
		ModelName: kind,
		ModelID:   id,
	}).Error
}

// Unfollow removes a subscription; missing rows are not an error.
func (s *Store) Unfollow(ctx context.Context, userID uint, kind domain.Kind, id uint) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND model_name = ? AND model_id = ?", userID, kind, id).
		Delete(&domain.Follower{}).Error
}

// DashboardCounts returns the non-deleted row count per kind.
func (s *Store) DashboardCounts(ctx context.Context) (map[domain.Kind]int64, error) {
	out := make(map[domain.Kind]int64, len(kinds))
	for kind := range kinds {
		var n int64
		err := s.db.WithContext(ctx).
			Table(kind.TableName()).
			Where("status <> ?", domain.StatusDeleted).
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, nil
}

// AuthorActivity is one author's message count over the window.
type AuthorActivity struct {
	AuthorID *uint  `json:"author_id"`
	Author   string `json:"author"`
	Count    int64  `json:"count"`
}

// TopAuthors lists the most active message authors over the last seven
// days, busiest first.
func (s *Store) TopAuthors(ctx context.Context, limit int) ([]AuthorActivity, error) {
	var rows []AuthorActivity
	since := time.Now().UTC().Add(-7 * 24 * time.Hour)
	err := s.db.WithContext(ctx).
		Table("messages").
		Select("messages.author_id, coalesce(users.username, 'system') AS author, count(*) AS count").
		Joins("LEFT JOIN users ON users.id = messages.author_id").
		Where("messages.date >= ?", since).
		Group("messages.author_id, users.username").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
