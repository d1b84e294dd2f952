package domain

import "time"

// SearchEntry is the materialised projection of one searchable entity.
// The flush pipeline refreshes rows after every commit; the tokens text
// feeds the Postgres tsvector column created by the migrations.
type SearchEntry struct {
	ModelName  Kind      `gorm:"primaryKey;size:20" json:"model_name"`
	ModelID    uint      `gorm:"primaryKey" json:"model_id"`
	Summary    string    `gorm:"not null;default:''" json:"summary"`
	Notes      string    `gorm:"not null;default:''" json:"notes"`
	Status     Status    `gorm:"not null;default:2" json:"status"`
	OwnerID    *uint     `json:"owner_id"`
	ModifiedAt time.Time `gorm:"not null" json:"modified_at"`
	Tokens     string    `gorm:"not null;default:''" json:"-"`
}

func (SearchEntry) TableName() string { return "search_index" }

// SearchableKinds lists the kinds federated under the search view.
var SearchableKinds = []Kind{KindDhcpRecord, KindDnsRecord, KindDnsZone, KindSubnet, KindVrf}

// RateLimit is one tumbling-window counter row. Increments go through a
// single atomic upsert so concurrent requests never lose hits.
type RateLimit struct {
	Scope       string    `gorm:"primaryKey;size:64" json:"scope"`
	Client      string    `gorm:"primaryKey;size:64" json:"client"`
	WindowStart time.Time `gorm:"not null" json:"window_start"`
	Hits        int64     `gorm:"not null;default:0" json:"hits"`
}

func (RateLimit) TableName() string { return "rate_limits" }
