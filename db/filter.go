package db

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"movieweb/models"
)

// FilterCondition is a single "field operator value" test.
type FilterCondition struct {
	Path          string      // Movie JSON field, e.g. "year" or "director"
	Operator      string      // Base operator, without the -insensitive suffix
	ParsedValue   interface{} // string, float64, bool or nil
	Raw           string      // Value text with surrounding quotes removed
	ValueType     gjson.Type
	IsInsensitive bool
	Original      string
}

// LogicalOperator joins two conditions.
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "and"
	LogicOr  LogicalOperator = "or"
)

// MovieFilter is a parsed filter. Logic[i] joins Conditions[i] and Conditions[i+1];
// the chain is evaluated left to right without precedence.
type MovieFilter struct {
	Conditions []FilterCondition
	Logic      []LogicalOperator
}

var validOperators = map[string]bool{
	"equals": true, "notequals": true,
	"greaterthan": true, "lessthan": true,
	"greaterthanorequals": true, "lessthanorequals": true,
	"contains": true, "startswith": true, "endswith": true,
}

// Operators that accept the -insensitive suffix.
var insensitiveOperators = map[string]bool{
	"equals": true, "notequals": true,
	"contains": true, "startswith": true, "endswith": true,
}

var numericOperators = map[string]bool{
	"greaterthan": true, "lessthan": true,
	"greaterthanorequals": true, "lessthanorequals": true,
}

// filterFields are the movie attributes a filter may reference.
var filterFields = map[string]bool{
	"id": true, "name": true, "director": true, "year": true,
	"rating": true, "poster": true, "actors": true, "plot": true,
}

// ParseMovieFilter parses alternating conditions and logical operators, e.g.
// ["year greaterthan 1990", "and", "director contains-insensitive nolan"].
// An empty input returns a nil filter.
func ParseMovieFilter(parts []string) (*MovieFilter, error) {
	if len(parts) == 0 {
		return nil, nil
	}

	parsed := &MovieFilter{}
	expectCondition := true

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: part %d is empty", ErrInvalidFilter, i)
		}

		if expectCondition {
			cond, err := parseCondition(part)
			if err != nil {
				return nil, fmt.Errorf("%w: condition %d (%q): %v", ErrInvalidFilter, i, part, err)
			}
			parsed.Conditions = append(parsed.Conditions, cond)
		} else {
			logic := LogicalOperator(strings.ToLower(part))
			if logic != LogicAnd && logic != LogicOr {
				return nil, fmt.Errorf("%w: expected 'and' or 'or' at %d, got %q", ErrInvalidFilter, i, part)
			}
			parsed.Logic = append(parsed.Logic, logic)
		}
		expectCondition = !expectCondition
	}

	if expectCondition {
		return nil, fmt.Errorf("%w: filter must end with a condition", ErrInvalidFilter)
	}
	return parsed, nil
}

func parseCondition(s string) (FilterCondition, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return FilterCondition{}, fmt.Errorf("expected 'field operator value'")
	}

	path := strings.ToLower(fields[0])
	if !filterFields[path] {
		return FilterCondition{}, fmt.Errorf("unknown field %q", fields[0])
	}

	operator := strings.ToLower(fields[1])
	insensitive := false
	if base, ok := strings.CutSuffix(operator, "-insensitive"); ok {
		if !insensitiveOperators[base] {
			return FilterCondition{}, fmt.Errorf("operator %q has no case-insensitive form", base)
		}
		operator = base
		insensitive = true
	}
	if !validOperators[operator] {
		return FilterCondition{}, fmt.Errorf("invalid operator %q", fields[1])
	}

	// Keep the value's inner spacing: everything after the operator token.
	afterPath := s[strings.Index(s, fields[0])+len(fields[0]):]
	rest := strings.TrimSpace(afterPath[strings.Index(afterPath, fields[1])+len(fields[1]):])
	value, valueType, raw := parseFilterValue(rest)

	return FilterCondition{
		Path:          path,
		Operator:      operator,
		ParsedValue:   value,
		Raw:           raw,
		ValueType:     valueType,
		IsInsensitive: insensitive,
		Original:      s,
	}, nil
}

// parseFilterValue detects quoted strings, null, numbers and booleans, in that
// order; anything else is a bare string.
func parseFilterValue(v string) (interface{}, gjson.Type, string) {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		inner := v[1 : len(v)-1]
		return inner, gjson.String, inner
	}
	if v == "null" {
		return nil, gjson.Null, v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f, gjson.Number, v
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return true, gjson.True, v
		}
		return false, gjson.False, v
	}
	return v, gjson.String, v
}

// Match evaluates the filter against a movie.
func (f *MovieFilter) Match(m models.Movie) (bool, error) {
	if f == nil || len(f.Conditions) == 0 {
		return true, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("encoding movie %s: %w", m.ID, err)
	}
	doc := gjson.ParseBytes(raw)

	result, err := evaluateCondition(doc, f.Conditions[0])
	if err != nil {
		return false, err
	}
	for i, logic := range f.Logic {
		next, err := evaluateCondition(doc, f.Conditions[i+1])
		if err != nil {
			return false, err
		}
		switch logic {
		case LogicAnd:
			result = result && next
		case LogicOr:
			result = result || next
		}
	}
	return result, nil
}

func evaluateCondition(doc gjson.Result, cond FilterCondition) (bool, error) {
	target := doc.Get(cond.Path)

	if cond.ValueType == gjson.Null || target.Type == gjson.Null {
		both := cond.ValueType == gjson.Null && target.Type == gjson.Null
		switch cond.Operator {
		case "equals":
			return both, nil
		case "notequals":
			return !both, nil
		default:
			return false, fmt.Errorf("%w: operator %q cannot compare null in %q", ErrInvalidFilter, cond.Operator, cond.Original)
		}
	}

	switch target.Type {
	case gjson.Number:
		return compareNumber(target.Float(), cond)
	case gjson.String:
		return compareString(target.String(), cond)
	default:
		return false, fmt.Errorf("%w: field %q cannot be compared", ErrInvalidFilter, cond.Path)
	}
}

func compareNumber(target float64, cond FilterCondition) (bool, error) {
	if cond.ValueType != gjson.Number {
		if cond.Operator == "notequals" {
			return true, nil
		}
		return false, fmt.Errorf("%w: field %q is numeric, %q is not a number", ErrInvalidFilter, cond.Path, cond.Raw)
	}
	value := cond.ParsedValue.(float64)
	switch cond.Operator {
	case "equals":
		return target == value, nil
	case "notequals":
		return target != value, nil
	case "greaterthan":
		return target > value, nil
	case "lessthan":
		return target < value, nil
	case "greaterthanorequals":
		return target >= value, nil
	case "lessthanorequals":
		return target <= value, nil
	default:
		return false, fmt.Errorf("%w: operator %q does not apply to numeric field %q", ErrInvalidFilter, cond.Operator, cond.Path)
	}
}

// compareString uses the value's text, so `name equals 1984` matches the title "1984".
func compareString(target string, cond FilterCondition) (bool, error) {
	if numericOperators[cond.Operator] {
		return false, fmt.Errorf("%w: operator %q does not apply to text field %q", ErrInvalidFilter, cond.Operator, cond.Path)
	}
	value := cond.Raw
	if cond.IsInsensitive {
		target = strings.ToLower(target)
		value = strings.ToLower(value)
	}
	switch cond.Operator {
	case "equals":
		return target == value, nil
	case "notequals":
		return target != value, nil
	case "contains":
		return strings.Contains(target, value), nil
	case "startswith":
		return strings.HasPrefix(target, value), nil
	case "endswith":
		return strings.HasSuffix(target, value), nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, cond.Operator)
	}
}

// SplitFilterExpression breaks a one-line filter such as
// `year greaterthan 1990 and director contains "Nolan"` into the parts
// ParseMovieFilter expects. "and"/"or" inside double quotes are kept.
func SplitFilterExpression(expr string) []string {
	var parts []string
	var current []string
	inQuotes := false

	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.Join(current, " "))
			current = nil
		}
	}

	for _, word := range strings.Fields(expr) {
		lower := strings.ToLower(word)
		if !inQuotes && len(current) > 0 && (lower == string(LogicAnd) || lower == string(LogicOr)) {
			flush()
			parts = append(parts, lower)
			continue
		}
		current = append(current, word)
		if strings.Count(word, `"`)%2 == 1 {
			inQuotes = !inQuotes
		}
	}
	flush()
	return parts
}
