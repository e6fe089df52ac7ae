package pipeline

import (
	"fmt"
	"strings"
)

// Filter is a compiled row predicate: a disjunction of conjunctions of
// field comparisons. It replaces free-form filter expressions evaluated by
// an interpreter; only named-field comparisons exist, so a configuration
// cell can never execute anything.
//
// Grammar, case-insensitive keywords:
//
//	expr       := clause { "or" clause }
//	clause     := comparison { "and" comparison }
//	comparison := field op value
//	op         := "==" | "!=" | "contains"
//
// Fields and values with spaces are quoted with single or double quotes.
type Filter struct {
	clauses [][]condition
}

type condition struct {
	field string
	op    string
	value string
}

// CompileFilter parses a filter expression. An empty expression yields a
// nil filter, which matches every row.
func CompileFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	tokens, err := tokenizeFilter(expr)
	if err != nil {
		return nil, err
	}

	f := &Filter{}
	var clause []condition
	i := 0
	for i < len(tokens) {
		cond, next, err := parseComparison(tokens, i)
		if err != nil {
			return nil, err
		}
		clause = append(clause, cond)
		i = next
		if i == len(tokens) {
			break
		}
		switch strings.ToLower(tokens[i].text) {
		case "and":
			i++
		case "or":
			f.clauses = append(f.clauses, clause)
			clause = nil
			i++
		default:
			return nil, fmt.Errorf("filter: expected and/or at %q", tokens[i].text)
		}
		if i == len(tokens) {
			return nil, fmt.Errorf("filter: dangling connective")
		}
	}
	if len(clause) == 0 {
		return nil, fmt.Errorf("filter: empty expression")
	}
	f.clauses = append(f.clauses, clause)
	return f, nil
}

// Matches evaluates the predicate against a row. A nil filter matches.
func (f *Filter) Matches(row map[string]string) bool {
	if f == nil {
		return true
	}
	for _, clause := range f.clauses {
		all := true
		for _, cond := range clause {
			if !cond.eval(row) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (c condition) eval(row map[string]string) bool {
	actual := row[c.field]
	switch c.op {
	case "==":
		return actual == c.value
	case "!=":
		return actual != c.value
	case "contains":
		return strings.Contains(actual, c.value)
	}
	return false
}

type filterToken struct {
	text   string
	quoted bool
}

func tokenizeFilter(expr string) ([]filterToken, error) {
	var tokens []filterToken
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j == len(runes) {
				return nil, fmt.Errorf("filter: unterminated quote")
			}
			tokens = append(tokens, filterToken{text: string(runes[i+1 : j]), quoted: true})
			i = j + 1
		default:
			j := i
			for j < len(runes) && runes[j] != ' ' && runes[j] != '\t' &&
				runes[j] != '\'' && runes[j] != '"' {
				j++
			}
			tokens = append(tokens, filterToken{text: string(runes[i:j])})
			i = j
		}
	}
	return tokens, nil
}

func isOperator(text string) bool {
	switch strings.ToLower(text) {
	case "==", "!=", "contains":
		return true
	}
	return false
}

// parseComparison consumes field tokens up to an operator, the operator and
// one value token. Unquoted multi-word fields are joined with spaces.
func parseComparison(tokens []filterToken, i int) (condition, int, error) {
	var fieldParts []string
	for i < len(tokens) && !(!tokens[i].quoted && isOperator(tokens[i].text)) {
		lower := strings.ToLower(tokens[i].text)
		if !tokens[i].quoted && (lower == "and" || lower == "or") {
			break
		}
		fieldParts = append(fieldParts, tokens[i].text)
		i++
	}
	if len(fieldParts) == 0 {
		return condition{}, i, fmt.Errorf("filter: missing field name")
	}
	if i == len(tokens) || !isOperator(tokens[i].text) {
		return condition{}, i, fmt.Errorf("filter: missing operator after %q", strings.Join(fieldParts, " "))
	}
	op := strings.ToLower(tokens[i].text)
	i++
	if i == len(tokens) {
		return condition{}, i, fmt.Errorf("filter: missing value for %q", strings.Join(fieldParts, " "))
	}
	value := tokens[i].text
	i++
	return condition{field: strings.Join(fieldParts, " "), op: op, value: value}, i, nil
}
