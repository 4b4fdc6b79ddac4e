// Package conditions evaluates field predicates against events.
package conditions

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/erhlee-bird/vector/api/v1/events"
)

type Condition interface {
	Check(event events.Event) bool
}

// CheckFieldsConfig maps "<field>.<predicate>" keys to operands, for example
// "message.equals: hello" or "status.exists: true".
type CheckFieldsConfig map[string]any

type predicate func(value any, present bool) bool

type fieldCheck struct {
	field string
	check predicate
}

type checkFields struct {
	checks []fieldCheck
}

func (c CheckFieldsConfig) Build() (Condition, error) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cond := &checkFields{}
	for _, key := range keys {
		idx := strings.LastIndex(key, ".")
		if idx <= 0 || idx == len(key)-1 {
			return nil, fmt.Errorf("invalid check_fields key %q: expected <field>.<predicate>", key)
		}
		field, op := key[:idx], key[idx+1:]
		check, err := buildPredicate(op, c[key])
		if err != nil {
			return nil, fmt.Errorf("check_fields %q: %w", key, err)
		}
		cond.checks = append(cond.checks, fieldCheck{field: field, check: check})
	}
	return cond, nil
}

func buildPredicate(op string, operand any) (predicate, error) {
	switch op {
	case "equals", "eq":
		return func(v any, ok bool) bool { return ok && valuesEqual(v, operand) }, nil
	case "not_equals", "neq":
		return func(v any, ok bool) bool { return !ok || !valuesEqual(v, operand) }, nil
	case "contains":
		s, err := operandString(op, operand)
		if err != nil {
			return nil, err
		}
		return func(v any, ok bool) bool { return ok && strings.Contains(stringify(v), s) }, nil
	case "starts_with":
		s, err := operandString(op, operand)
		if err != nil {
			return nil, err
		}
		return func(v any, ok bool) bool { return ok && strings.HasPrefix(stringify(v), s) }, nil
	case "ends_with":
		s, err := operandString(op, operand)
		if err != nil {
			return nil, err
		}
		return func(v any, ok bool) bool { return ok && strings.HasSuffix(stringify(v), s) }, nil
	case "exists":
		want, isBool := operand.(bool)
		if !isBool {
			return nil, fmt.Errorf("exists expects a boolean, got %T", operand)
		}
		return func(_ any, ok bool) bool { return ok == want }, nil
	case "regex":
		s, err := operandString(op, operand)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, err
		}
		return func(v any, ok bool) bool { return ok && re.MatchString(stringify(v)) }, nil
	}
	return nil, fmt.Errorf("unknown predicate %q", op)
}

func operandString(op string, operand any) (string, error) {
	s, ok := operand.(string)
	if !ok {
		return "", fmt.Errorf("%s expects a string, got %T", op, operand)
	}
	return s, nil
}

func (c *checkFields) Check(event events.Event) bool {
	attrs := event.GetAttributes()
	for _, fc := range c.checks {
		v, ok := attrs[fc.field]
		if !fc.check(v, ok) {
			return false
		}
	}
	return true
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return stringify(a) == stringify(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
