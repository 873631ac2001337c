// Package predicate compiles {optic: {keyword: operand}} specifications
// into validators over a JSON document.
package predicate

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	"github.com/danslapman/kolibri-go/internal/optic"
)

// Spec is a predicate specification: optic text -> keyword -> operand.
type Spec map[string]map[string]interface{}

// Validate evaluates spec against doc. Optics and keywords are AND-joined;
// an empty spec is always true. A malformed operand for a keyword is
// reported as an error so the caller can treat this candidate as
// non-matching without failing the whole request.
func Validate(spec Spec, doc interface{}) (bool, error) {
	for path, constraints := range spec {
		sub := optic.GetAll(doc, optic.Parse(path))
		for keyword, operand := range constraints {
			ok, err := holds(keyword, sub, operand)
			if err != nil {
				return false, fmt.Errorf("predicate: optic %q: %w", path, err)
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func holds(keyword string, sub []interface{}, operand interface{}) (bool, error) {
	switch keyword {
	case "==":
		for _, v := range sub {
			if deepEqual(v, operand) {
				return true, nil
			}
		}
		return false, nil
	case "!=":
		for _, v := range sub {
			if deepEqual(v, operand) {
				return false, nil
			}
		}
		return true, nil
	case "<", "<=", ">", ">=":
		return holdsOrder(keyword, sub, operand)
	case "~=":
		pattern, ok := operand.(string)
		if !ok {
			return false, fmt.Errorf("~= operand must be a string")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("~= operand is not a valid regex: %w", err)
		}
		for _, v := range sub {
			if re.MatchString(stringify(v)) {
				return true, nil
			}
		}
		return false, nil
	case "size":
		n, ok := asNumber(operand)
		if !ok {
			return false, fmt.Errorf("size operand must be a number")
		}
		for _, v := range sub {
			if arr, ok := v.([]interface{}); ok && float64(len(arr)) == n {
				return true, nil
			}
		}
		return false, nil
	case "exists":
		expected, ok := operand.(bool)
		if !ok {
			return false, fmt.Errorf("exists operand must be a bool")
		}
		return (len(sub) > 0) == expected, nil
	case "[_]":
		members, ok := operand.([]interface{})
		if !ok {
			return false, fmt.Errorf("[_] operand must be an array")
		}
		for _, v := range sub {
			for _, m := range members {
				if deepEqual(v, m) {
					return true, nil
				}
			}
		}
		return false, nil
	case "![_]":
		members, ok := operand.([]interface{})
		if !ok {
			return false, fmt.Errorf("![_] operand must be an array")
		}
		for _, v := range sub {
			for _, m := range members {
				if deepEqual(v, m) {
					return false, nil
				}
			}
		}
		return true, nil
	case "&[_]":
		members, ok := operand.([]interface{})
		if !ok {
			return false, fmt.Errorf("&[_] operand must be an array")
		}
		for _, v := range sub {
			arr, ok := v.([]interface{})
			if !ok {
				continue
			}
			if isSuperset(arr, members) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown keyword %q", keyword)
	}
}

func holdsOrder(keyword string, sub []interface{}, operand interface{}) (bool, error) {
	for _, v := range sub {
		if ln, rn, ok := bothNumbers(v, operand); ok {
			if compareOrder(keyword, compareFloat(ln, rn)) {
				return true, nil
			}
			continue
		}
		if ls, rs, ok := bothStrings(v, operand); ok {
			if compareOrder(keyword, compareString(ls, rs)) {
				return true, nil
			}
			continue
		}
		// cross-kind comparisons fail the predicate for this element, no error.
	}
	return false, nil
}

func compareOrder(keyword string, cmp int) bool {
	switch keyword {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func bothNumbers(a, b interface{}) (float64, float64, bool) {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	return an, bn, aok && bok
}

func bothStrings(a, b interface{}) (string, string, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	return as, bs, aok && bok
}

func asNumber(v interface{}) (float64, bool) {
	n, ok := v.(float64)
	return n, ok
}

func isSuperset(arr, members []interface{}) bool {
	for _, m := range members {
		found := false
		for _, v := range arr {
			if deepEqual(v, m) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func deepEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
