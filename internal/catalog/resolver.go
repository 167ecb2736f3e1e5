package catalog

import (
	"strconv"
	"strings"

	"guesswho-server/internal/models"
)

// ResolveAnswer answers a question against a board member's attribute data.
// It is total over every attribute shape the directory produces: a malformed
// question or a missing attribute answers false, never panics.
func ResolveAnswer(q *Question, member *models.BoardMember) bool {
	if q == nil || member == nil || q.AttributePath == "" {
		return false
	}

	value := lookupPath(member.Attributes, q.AttributePath)
	switch v := value.(type) {
	case []any:
		// An array question with no target value is unsatisfiable by
		// definition; answer false rather than guessing.
		if q.AttributeValue == nil {
			return false
		}
		for _, elem := range v {
			if valuesEqual(elem, q.AttributeValue) {
				return true
			}
		}
		return false
	case bool:
		// AttributeValue is ignored for boolean fields.
		return v
	case string:
		want, ok := q.AttributeValue.(string)
		return ok && strings.EqualFold(v, want)
	case float64:
		want, ok := coerceNumber(q.AttributeValue)
		return ok && want == v
	case int:
		want, ok := coerceNumber(q.AttributeValue)
		return ok && want == float64(v)
	default:
		return false
	}
}

// lookupPath walks a dotted path through nested attribute groups. A missing
// intermediate segment yields nil.
func lookupPath(attrs models.AttributeGroups, path string) any {
	var current any = map[string]any(attrs)
	for _, segment := range strings.Split(path, ".") {
		group, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = group[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// valuesEqual compares an array element against the question's target value:
// case-insensitively for strings, strictly otherwise.
func valuesEqual(elem, want any) bool {
	if es, ok := elem.(string); ok {
		ws, ok := want.(string)
		return ok && strings.EqualFold(es, ws)
	}
	if en, ok := coerceNumber(elem); ok {
		if wn, ok := coerceNumber(want); ok {
			return en == wn
		}
		return false
	}
	return elem == want
}

// coerceNumber converts JSON numbers, Go ints, and numeric strings to float64.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
