package search

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"udb/internal/domain"
)

// Refresh upserts the search row of one entity. Soft-deleted rows stay
// in the index; the status column lets callers filter.
func Refresh(tx *gorm.DB, e domain.Entity) error {
	searchable, ok := e.(domain.Searchable)
	if !ok {
		return nil
	}
	meta := e.Meta()
	entry := domain.SearchEntry{
		ModelName:  e.Kind(),
		ModelID:    e.GetID(),
		Summary:    meta.Summary,
		Notes:      meta.Notes,
		Status:     meta.Status,
		OwnerID:    meta.OwnerID,
		ModifiedAt: meta.ModifiedAt,
		Tokens:     TokenBag(searchable.SearchString()),
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "model_name"}, {Name: "model_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary", "notes", "status", "owner_id", "modified_at", "tokens",
		}),
	}).Create(&entry).Error
}

// Result is one federated search row.
type Result struct {
	ModelName  domain.Kind   `json:"model_name"`
	ModelID    uint          `json:"model_id"`
	Summary    string        `json:"summary"`
	Notes      string        `json:"notes"`
	Status     domain.Status `json:"status"`
	OwnerID    *uint         `json:"owner_id"`
	ModifiedAt string        `json:"modified_at"`
}

const maxResults = 100

// Query runs a websearch query against the index, matching the token
// bag of every entity and, through the audit join, its message bodies.
// At most 100 rows, best rank first then most recently modified.
func Query(ctx context.Context, db *gorm.DB, q string) ([]Result, error) {
	tsquery := BuildTsquery(q)
	if tsquery == "" {
		return nil, nil
	}

	var rows []Result
	err := db.WithContext(ctx).
		Table("search_index").
		Select("model_name, model_id, summary, notes, status, owner_id, modified_at").
		Where(`search_vector @@ to_tsquery('simple', @q)
			OR EXISTS (
				SELECT 1 FROM messages m
				WHERE m.model_name = search_index.model_name
				AND m.model_id = search_index.model_id
				AND to_tsvector('simple', m.body || ' ' || coalesce(m.changes, '')) @@ to_tsquery('simple', @q)
			)`, map[string]any{"q": tsquery}).
		Clauses(clause.OrderBy{
			Expression: gorm.Expr("ts_rank(search_vector, to_tsquery('simple', ?)) DESC, modified_at DESC", tsquery),
		}).
		Limit(maxResults).
		Scan(&rows).Error
	return rows, err
}

// QueryMessages returns search rows whose audit trail matches the
// query, without matching the entity fields themselves.
func QueryMessages(ctx context.Context, db *gorm.DB, q string) ([]Result, error) {
	tsquery := BuildTsquery(q)
	if tsquery == "" {
		return nil, nil
	}

	var rows []Result
	err := db.WithContext(ctx).
		Table("search_index").
		Select("model_name, model_id, summary, notes, status, owner_id, modified_at").
		Where(`EXISTS (
			SELECT 1 FROM messages m
			WHERE m.model_name = search_index.model_name
			AND m.model_id = search_index.model_id
			AND to_tsvector('simple', m.body || ' ' || coalesce(m.changes, '')) @@ to_tsquery('simple', ?)
		)`, tsquery).
		Order("modified_at DESC").
		Limit(maxResults).
		Scan(&rows).Error
	return rows, err
}
