// Package search maintains the federated search index: a materialised
// projection of the searchable entity kinds refreshed by the flush
// pipeline, queried with websearch-style syntax.
package search

import (
	"strings"
	"unicode"
)

// Token folding: lowercase, split on anything that is not a letter,
// digit, dot, colon, slash or dash so addresses and hostnames survive
// as single tokens.
func Fold(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return false
		case r == '.' || r == ':' || r == '/' || r == '-' || r == '_':
			return false
		}
		return true
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "./:-_")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// TokenBag joins folded tokens into the text stored behind the
// tsvector column.
func TokenBag(parts ...string) string {
	tokens := make([]string, 0, 8)
	for _, p := range parts {
		tokens = append(tokens, Fold(p)...)
	}
	return strings.Join(tokens, " ")
}

type termKind int

const (
	termPlain termKind = iota
	termPhrase
	termNegated
	termOr
)

type term struct {
	kind termKind
	text string
}

// parseQuery tokenizes a websearch string: bare terms AND together,
// quoted phrases match in sequence, a leading dash negates, OR joins
// the neighbouring terms.
func parseQuery(q string) []term {
	var terms []term
	raw := strings.TrimSpace(q)
	for raw != "" {
		raw = strings.TrimLeft(raw, " \t")
		if raw == "" {
			break
		}
		negated := false
		if strings.HasPrefix(raw, "-") {
			negated = true
			raw = raw[1:]
		}
		if strings.HasPrefix(raw, `"`) {
			end := strings.Index(raw[1:], `"`)
			var phrase string
			if end < 0 {
				phrase = raw[1:]
				raw = ""
			} else {
				phrase = raw[1 : end+1]
				raw = raw[end+2:]
			}
			kind := termPhrase
			if negated {
				kind = termNegated
			}
			if strings.TrimSpace(phrase) != "" {
				terms = append(terms, term{kind: kind, text: phrase})
			}
			continue
		}
		word := raw
		if i := strings.IndexAny(raw, " \t"); i >= 0 {
			word = raw[:i]
			raw = raw[i+1:]
		} else {
			raw = ""
		}
		if word == "" {
			continue
		}
		if !negated && strings.EqualFold(word, "or") {
			terms = append(terms, term{kind: termOr})
			continue
		}
		kind := termPlain
		if negated {
			kind = termNegated
		}
		terms = append(terms, term{kind: kind, text: word})
	}
	return terms
}

// BuildTsquery translates a websearch string into to_tsquery syntax
// over the simple configuration. An empty result means the query had no
// positive terms.
func BuildTsquery(q string) string {
	terms := parseQuery(q)
	var groups []string   // OR-joined alternatives
	var current []string  // AND-joined terms of the current group
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, strings.Join(current, " & "))
			current = nil
		}
	}
	for _, t := range terms {
		switch t.kind {
		case termOr:
			flush()
		case termNegated:
			if expr := tsqueryTerm(t.text, false); expr != "" {
				current = append(current, "!"+expr)
			}
		case termPhrase:
			if expr := tsqueryTerm(t.text, true); expr != "" {
				current = append(current, expr)
			}
		default:
			if expr := tsqueryTerm(t.text, false); expr != "" {
				current = append(current, expr)
			}
		}
	}
	flush()

	positive := false
	for _, g := range groups {
		if !strings.HasPrefix(g, "!") {
			positive = true
			break
		}
	}
	if !positive {
		return ""
	}
	if len(groups) == 1 {
		return groups[0]
	}
	quoted := make([]string, len(groups))
	for i, g := range groups {
		quoted[i] = "(" + g + ")"
	}
	return strings.Join(quoted, " | ")
}

// tsqueryTerm folds one term or phrase into lexemes. Phrases use the
// followed-by operator to preserve order.
func tsqueryTerm(text string, phrase bool) string {
	tokens := Fold(text)
	if len(tokens) == 0 {
		return ""
	}
	escaped := make([]string, len(tokens))
	for i, tok := range tokens {
		escaped[i] = "'" + strings.ReplaceAll(tok, "'", "''") + "'"
	}
	if len(escaped) == 1 {
		return escaped[0]
	}
	op := " & "
	if phrase {
		op = " <-> "
	}
	return "(" + strings.Join(escaped, op) + ")"
}
