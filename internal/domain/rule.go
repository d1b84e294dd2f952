package domain

import (
	"strings"
	"time"
)

// Rule severities. Enforced rules also run inline before commit and
// abort transactions whose entities are in violation.
const (
	SeveritySoft     int16 = 0
	SeverityEnforced int16 = 1
)

// Rule is an administrator-supplied SQL predicate flagging inventory
// rows as violations. Builtin rules are seeded at boot and refreshed on
// every start.
type Rule struct {
	Base
	Name        string `gorm:"not null;size:255" json:"name"`
	Description string `gorm:"not null;default:''" json:"description"`
	Statement   string `gorm:"not null" json:"statement"`
	ModelName   Kind   `gorm:"not null;size:20" json:"model_name"`
	Severity    int16  `gorm:"not null;default:0" json:"severity"`
	Builtin     bool   `gorm:"not null;default:false" json:"builtin"`
}

func (Rule) TableName() string      { return "rules" }
func (r *Rule) Kind() Kind          { return KindRule }
func (r *Rule) DisplayName() string { return r.Name }

func (r *Rule) Fields() map[string]any {
	return map[string]any{
		"name":        r.Name,
		"description": r.Description,
		"statement":   r.Statement,
		"model_name":  string(r.ModelName),
		"severity":    r.Severity,
		"notes":       r.Notes,
		"status":      r.Status.String(),
		"owner_id":    refValue(r.OwnerID),
	}
}

func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(r.Statement) == "" {
		return NewValidationError("statement", "statement is required")
	}
	if r.ModelName == "" {
		return NewValidationError("model_name", "data type is required")
	}
	if r.Severity != SeveritySoft && r.Severity != SeverityEnforced {
		return NewValidationError("severity", "severity must be 0 or 1")
	}
	return nil
}

// RuleViolation is one offending row reported by a rule run. Re-running
// the engine bumps last_seen for rows still offending and deletes rows
// no longer returned.
type RuleViolation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID    uint      `gorm:"not null;uniqueIndex:idx_violations_unique,priority:1" json:"rule_id"`
	ModelName Kind      `gorm:"not null;size:20" json:"model_name"`
	ModelID   uint      `gorm:"not null;uniqueIndex:idx_violations_unique,priority:2" json:"model_id"`
	Label     string    `gorm:"not null;default:''" json:"label"`
	FirstSeen time.Time `gorm:"autoCreateTime" json:"first_seen"`
	LastSeen  time.Time `gorm:"not null" json:"last_seen"`
}

func (RuleViolation) TableName() string { return "rule_violations" }
