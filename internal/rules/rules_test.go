package rules

import (
	"strings"
	"testing"

	"udb/internal/domain"
)

func TestLintAcceptsSingleSelect(t *testing.T) {
	statements := []string{
		"SELECT id, name FROM subnets WHERE status <> 0",
		"select id, name from subnets where notes = ''",
		"SELECT id, name FROM subnets;",
	}
	for _, stmt := range statements {
		if err := Lint(stmt, domain.KindSubnet); err != nil {
			t.Errorf("Lint(%q) = %v, want nil", stmt, err)
		}
	}
}

func TestLintRejections(t *testing.T) {
	cases := []struct {
		statement string
		model     domain.Kind
		fragment  string
	}{
		{"", domain.KindSubnet, "required"},
		{"DELETE FROM subnets", domain.KindSubnet, "SELECT"},
		{"UPDATE subnets SET name = 'x'", domain.KindSubnet, "SELECT"},
		{"SELECT id, name FROM subnets; DROP TABLE subnets", domain.KindSubnet, "single statement"},
		{"SELECT id, name FROM subnets WHERE id IN (DELETE FROM vrfs RETURNING id)", domain.KindSubnet, "delete"},
		{"SELECT id, name FROM vrfs", domain.KindSubnet, "selected data type"},
	}
	for _, c := range cases {
		err := Lint(c.statement, c.model)
		if err == nil {
			t.Errorf("Lint(%q) accepted, want rejection", c.statement)
			continue
		}
		var verr *domain.ValidationError
		if !errorsAs(err, &verr) {
			t.Errorf("Lint(%q) error type %T, want ValidationError", c.statement, err)
			continue
		}
		if verr.Field != "statement" {
			t.Errorf("Lint(%q) field = %q, want statement", c.statement, verr.Field)
		}
		if !strings.Contains(strings.ToLower(verr.Message), strings.ToLower(c.fragment)) {
			t.Errorf("Lint(%q) message %q does not mention %q", c.statement, verr.Message, c.fragment)
		}
	}
}

func TestLintIgnoresStringLiterals(t *testing.T) {
	statements := []string{
		"SELECT id, name FROM subnets WHERE notes LIKE '%update%'",
		"SELECT id, name FROM subnets WHERE notes = 'drop; create'",
		"SELECT id, name FROM subnets WHERE name = 'it''s; an update'",
	}
	for _, stmt := range statements {
		if err := Lint(stmt, domain.KindSubnet); err != nil {
			t.Errorf("Lint(%q) = %v, want nil", stmt, err)
		}
	}

	// Outside a literal the keywords still trip.
	stmt := "SELECT id, name FROM subnets WHERE notes = 'x' AND id IN (DELETE FROM vrfs RETURNING id)"
	if err := Lint(stmt, domain.KindSubnet); err == nil {
		t.Errorf("Lint(%q) accepted, want rejection", stmt)
	}
}

func TestLintAllowsColumnNamesContainingKeywords(t *testing.T) {
	stmt := "SELECT id, name FROM subnets WHERE created_at < modified_at AND status = 2"
	if err := Lint(stmt, domain.KindSubnet); err != nil {
		t.Errorf("Lint = %v, want nil", err)
	}
}

func TestWrapStatement(t *testing.T) {
	rule := &domain.Rule{Statement: "SELECT id, name FROM subnets;"}
	rule.ID = 7

	got := WrapStatement(rule, 0)
	want := "SELECT id, name FROM (SELECT id, name FROM subnets) AS r7"
	if got != want {
		t.Errorf("WrapStatement = %q, want %q", got, want)
	}

	scoped := WrapStatement(rule, 42)
	if !strings.HasSuffix(scoped, " WHERE id = 42") {
		t.Errorf("scoped statement = %q", scoped)
	}
}

func TestCheckColumns(t *testing.T) {
	if err := CheckColumns([]string{"id", "name"}); err != nil {
		t.Errorf("CheckColumns(id, name) = %v", err)
	}
	if err := CheckColumns([]string{"ID", "Name"}); err != nil {
		t.Errorf("column check should be case-insensitive, got %v", err)
	}
	if err := CheckColumns([]string{"id"}); err == nil {
		t.Error("CheckColumns accepted one column")
	}
	if err := CheckColumns([]string{"id", "label"}); err == nil {
		t.Error("CheckColumns accepted a mislabeled column")
	}
	if err := CheckColumns([]string{"id", "name", "extra"}); err == nil {
		t.Error("CheckColumns accepted three columns")
	}
}

func TestBuiltinStatementsPassLint(t *testing.T) {
	for _, rule := range builtins {
		if err := Lint(rule.Statement, rule.ModelName); err != nil {
			t.Errorf("builtin %q fails its own lint: %v", rule.Name, err)
		}
	}
}

func errorsAs(err error, target **domain.ValidationError) bool {
	v, ok := err.(*domain.ValidationError)
	if ok {
		*target = v
	}
	return ok
}
