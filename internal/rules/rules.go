// Package rules validates and evaluates administrator-supplied SQL
// predicates against the inventory. A rule statement is a single SELECT
// returning (id, name) rows; returned rows are violations.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"udb/internal/domain"
)

var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "copy", "vacuum", "set",
}

var wordSplit = regexp.MustCompile(`[^a-z0-9_]+`)

// Lint checks the statement without touching the database: it must be
// one top-level SELECT over the declared model's table, free of
// data-modifying keywords.
func Lint(statement string, modelName domain.Kind) error {
	trimmed := strings.TrimSpace(statement)
	if trimmed == "" {
		return domain.NewValidationError("statement", "statement is required")
	}

	// Literal content must not trip the keyword or semicolon checks.
	scrubbed := stripLiterals(trimmed)

	// Reject multi-statement input; a single trailing semicolon is fine.
	body := strings.TrimRight(scrubbed, "; \t\n")
	if strings.Contains(body, ";") {
		return domain.NewValidationError("statement", "only a single statement is allowed")
	}

	lower := strings.ToLower(body)
	if !strings.HasPrefix(lower, "select ") && !strings.HasPrefix(lower, "select\n") {
		return domain.NewValidationError("statement", "your SQL statement should start with SELECT")
	}

	words := wordSplit.Split(lower, -1)
	for _, w := range words {
		for _, kw := range forbiddenKeywords {
			if w == kw {
				return domain.NewValidationError("statement", "keyword %q is not allowed", kw)
			}
		}
	}

	table := modelName.TableName()
	if !strings.Contains(lower, "from "+table) {
		return domain.NewValidationError("statement",
			"your SQL statement does not match the selected data type (expected FROM %s)", table)
	}
	return nil
}

// stripLiterals blanks single-quoted SQL literals, including doubled
// quotes used as an escape, so their content is not scanned as SQL.
func stripLiterals(s string) string {
	var b strings.Builder
	inLiteral := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			if inLiteral && i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			inLiteral = !inLiteral
			continue
		}
		if !inLiteral {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// WrapStatement embeds the rule statement into the violation query the
// engine executes. When id is non-zero the result is narrowed to one
// entity.
func WrapStatement(rule *domain.Rule, id uint) string {
	sql := fmt.Sprintf("SELECT id, name FROM (%s) AS r%d",
		strings.TrimRight(strings.TrimSpace(rule.Statement), "; \t\n"), rule.ID)
	if id != 0 {
		sql += fmt.Sprintf(" WHERE id = %d", id)
	}
	return sql
}

// expectedColumns is the projection every rule statement must return.
var expectedColumns = []string{"id", "name"}

// CheckColumns verifies the probe projection.
func CheckColumns(cols []string) error {
	if len(cols) != len(expectedColumns) {
		return domain.NewValidationError("statement",
			"your statement returned %d column(s), but it is expected to return 2 columns labeled: id, name", len(cols))
	}
	for i, c := range cols {
		if !strings.EqualFold(c, expectedColumns[i]) {
			return domain.NewValidationError("statement",
				"your statement returned columns labeled %s, but it is expected to return: id, name",
				strings.Join(cols, ", "))
		}
	}
	return nil
}
