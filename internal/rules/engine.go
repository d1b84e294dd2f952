package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"udb/internal/domain"
	"udb/internal/store"
)

// Engine validates rules against the live schema and evaluates them,
// persisting violations.
type Engine struct {
	db       *gorm.DB
	timeout  time.Duration
	observer func(err error)
}

func NewEngine(db *gorm.DB, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{db: db, timeout: timeout}
}

// SetObserver installs a callback invoked after every scheduled rule
// run with its outcome.
func (e *Engine) SetObserver(fn func(err error)) { e.observer = fn }

// Validate lints the statement and probes it against the database with
// a LIMIT 0 run, checking that the projection is exactly (id, name).
func (e *Engine) Validate(ctx context.Context, rule *domain.Rule) error {
	if err := Lint(rule.Statement, rule.ModelName); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	probe := fmt.Sprintf("SELECT * FROM (%s) AS probe LIMIT 0", WrapStatement(rule, 0))
	rows, err := e.db.WithContext(ctx).Raw(probe).Rows()
	if err != nil {
		return domain.NewValidationError("statement", "%v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.NewValidationError("statement", "%v", err)
	}
	return CheckColumns(cols)
}

type violationRow struct {
	ID   uint   `gorm:"column:id"`
	Name string `gorm:"column:name"`
}

// Run evaluates one rule in its own read-only transaction under the
// per-statement timeout and reconciles the persisted violations:
// still-offending rows get last_seen bumped, cleared rows are deleted.
func (e *Engine) Run(ctx context.Context, rule *domain.Rule) error {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var offending []violationRow
	err := e.db.WithContext(runCtx).
		Transaction(func(tx *gorm.DB) error {
			return tx.Raw(WrapStatement(rule, 0)).Scan(&offending).Error
		}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("rule %q failed: %w", rule.Name, err)
	}

	now := time.Now().UTC()
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, 0, len(offending))
		for _, row := range offending {
			ids = append(ids, row.ID)
			violation := domain.RuleViolation{
				RuleID:    rule.ID,
				ModelName: rule.ModelName,
				ModelID:   row.ID,
				Label:     row.Name,
				FirstSeen: now,
				LastSeen:  now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "rule_id"}, {Name: "model_id"}},
				DoUpdates: clause.Assignments(map[string]any{"last_seen": now, "label": row.Name}),
			}).Create(&violation).Error
			if err != nil {
				return err
			}
		}
		cleanup := tx.Where("rule_id = ?", rule.ID)
		if len(ids) > 0 {
			cleanup = cleanup.Where("model_id NOT IN ?", ids)
		}
		return cleanup.Delete(&domain.RuleViolation{}).Error
	})
}

// RunAll evaluates every enabled rule. Timeouts and failures are logged
// and skipped so one bad rule cannot starve the rest.
func (e *Engine) RunAll(ctx context.Context) {
	var enabled []domain.Rule
	err := e.db.WithContext(ctx).
		Where("status = ?", domain.StatusEnabled).
		Find(&enabled).Error
	if err != nil {
		log.Error("failed to list rules", "error", err)
		return
	}
	for i := range enabled {
		rule := &enabled[i]
		err := e.Run(ctx, rule)
		if err != nil {
			log.Warn("rule evaluation skipped", "rule", rule.Name, "error", err)
		}
		if e.observer != nil {
			e.observer(err)
		}
	}
}

// ViolationError aborts a commit that trips an enforced rule.
type ViolationError struct {
	Rule  string
	Label string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("enforced rule %q is violated by %s", e.Rule, e.Label)
}

// InlineChecker returns the pre-commit check the flush pipeline runs:
// every enabled enforced rule targeting a touched kind is evaluated
// inside the transaction, and a violation involving a touched entity
// aborts the commit.
func (e *Engine) InlineChecker() store.InlineChecker {
	return func(tx *gorm.DB, touched []store.Ref) error {
		if len(touched) == 0 {
			return nil
		}
		kindSet := make(map[domain.Kind][]uint)
		for _, ref := range touched {
			kindSet[ref.Kind] = append(kindSet[ref.Kind], ref.ID)
		}
		kindNames := make([]domain.Kind, 0, len(kindSet))
		for kind := range kindSet {
			kindNames = append(kindNames, kind)
		}

		var enforced []domain.Rule
		err := tx.
			Where("status = ? AND severity = ? AND model_name IN ?",
				domain.StatusEnabled, domain.SeverityEnforced, kindNames).
			Find(&enforced).Error
		if err != nil {
			return err
		}

		for i := range enforced {
			rule := &enforced[i]
			for _, id := range kindSet[rule.ModelName] {
				var rows []violationRow
				if err := tx.Raw(WrapStatement(rule, id)).Scan(&rows).Error; err != nil {
					return fmt.Errorf("enforced rule %q failed: %w", rule.Name, err)
				}
				if len(rows) > 0 {
					return &ViolationError{Rule: rule.Name, Label: rows[0].Name}
				}
			}
		}
		return nil
	}
}

// Scheduler periodically re-evaluates all rules out of band.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{engine: engine, interval: interval}
}

// Start blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.engine.RunAll(ctx)
		}
	}
}
