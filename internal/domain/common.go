// Package domain defines the persisted entity types of the inventory.
// Entities are plain data records; all behaviour that needs database
// access lives in the store and its hooks.
package domain

import (
	"time"
)

// Status of an entity row. Soft deletion keeps the row and its history.
type Status int16

const (
	StatusDeleted  Status = 0
	StatusDisabled Status = 1
	StatusEnabled  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusDeleted:
		return "deleted"
	case StatusDisabled:
		return "disabled"
	case StatusEnabled:
		return "enabled"
	}
	return "unknown"
}

// Kind identifies an entity type in messages, rules and search rows.
type Kind string

const (
	KindVrf        Kind = "vrf"
	KindSubnet     Kind = "subnet"
	KindDnsZone    Kind = "dnszone"
	KindDnsRecord  Kind = "dnsrecord"
	KindDhcpRecord Kind = "dhcprecord"
	KindIp         Kind = "ip"
	KindMac        Kind = "mac"
	KindUser       Kind = "user"
	KindRule       Kind = "rule"
)

// TableName returns the table backing a kind. Rule statements are
// validated against these names.
func (k Kind) TableName() string {
	switch k {
	case KindVrf:
		return "vrfs"
	case KindSubnet:
		return "subnets"
	case KindDnsZone:
		return "dnszones"
	case KindDnsRecord:
		return "dnsrecords"
	case KindDhcpRecord:
		return "dhcprecords"
	case KindIp:
		return "ips"
	case KindMac:
		return "macs"
	case KindUser:
		return "users"
	case KindRule:
		return "rules"
	}
	return string(k)
}

// Base carries the columns shared by every tracked entity.
type Base struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Status     Status    `gorm:"not null;default:2;index" json:"status"`
	OwnerID    *uint     `gorm:"index" json:"owner_id"`
	Notes      string    `gorm:"not null;default:''" json:"notes"`
	Summary    string    `gorm:"not null;default:''" json:"summary"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	ModifiedAt time.Time `gorm:"autoUpdateTime" json:"modified_at"`
}

func (b *Base) GetID() uint { return b.ID }
func (b *Base) Meta() *Base { return b }

// Entity is implemented by every record the store tracks.
type Entity interface {
	Kind() Kind
	GetID() uint
	Meta() *Base

	// DisplayName is the human identifier used in summaries and in
	// change diffs of reference fields.
	DisplayName() string

	// Fields lists the tracked columns for change diffing. Technical
	// columns (timestamps, summary, id) are deliberately absent.
	Fields() map[string]any

	// Validate performs the local, database-free checks.
	Validate() error
}

// Searchable entities contribute rows to the federated search index.
type Searchable interface {
	Entity
	SearchString() string
}

// NetworkID is a signed VNI/VLAN column where -1 stands for "undefined"
// so the column itself is never null.
type NetworkID int64

const NetworkIDUndefined NetworkID = -1

func (n NetworkID) Defined() bool { return n != NetworkIDUndefined }

func (n NetworkID) Value() (int64, bool) {
	if n == NetworkIDUndefined {
		return 0, false
	}
	return int64(n), true
}
