// Package template rewrites JSON documents by expanding ${...}, $:{...},
// $~{...} and %{...} tokens found in string leaves, using a data document
// (resolved through the optic package) and the expression sandbox.
package template

import (
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/danslapman/kolibri-go/internal/metrics"
	"github.com/danslapman/kolibri-go/internal/optic"
	"github.com/danslapman/kolibri-go/internal/sandbox"
)

// singleOpticPattern matches a string whose entire value is one
// $[:~]?{path} token.
var singleOpticPattern = regexp.MustCompile(`^\$([:~]?)\{([\p{L}\d_.\[\]-]+)\}$`)

// globalOpticPattern matches every $[:~]?{path} occurrence anywhere in a
// string, for the multi-token / mixed-text substitution case.
var globalOpticPattern = regexp.MustCompile(`\$[:~]?\{([\p{L}\d_.\[\]-]+)\}`)

// codePattern matches a string whose entire value is one %{code} token.
var codePattern = regexp.MustCompile(`(?s)^%\{(.*)\}$`)

// Substitute walks template in place, expanding every string leaf (a whole
// single optic token first, then optic tokens within text, then a whole
// %{code} token; anything else is left unchanged), and returns the
// (possibly replaced) root value.
// Object and array structure is preserved; only string leaves are touched.
func Substitute(tmpl interface{}, data interface{}) interface{} {
	switch t := tmpl.(type) {
	case map[string]interface{}:
		for k, v := range t {
			t[k] = Substitute(v, data)
		}
		return t
	case []interface{}:
		for i, v := range t {
			t[i] = Substitute(v, data)
		}
		return t
	case string:
		return substituteString(t, data)
	default:
		return t
	}
}

// Patch resolves each optic/template pair against data and writes the
// result into *target, creating intermediate structure as needed.
func Patch(target *interface{}, data interface{}, schema map[string]string) {
	for path, defn := range schema {
		newValue := substituteString(defn, data)
		optic.Set(target, optic.Parse(path), newValue)
	}
}

func substituteString(s string, data interface{}) interface{} {
	if m := singleOpticPattern.FindStringSubmatch(s); m != nil {
		modifier, path := m[1], m[2]

		resolved := optic.GetAll(data, optic.Parse(path))
		if len(resolved) == 0 {
			return s
		}

		value := resolved[0]
		switch modifier {
		case ":":
			return castToString(value)
		case "~":
			return castFromString(value)
		default:
			return value
		}
	}

	if globalOpticPattern.MatchString(s) {
		return globalOpticPattern.ReplaceAllStringFunc(s, func(token string) string {
			m := globalOpticPattern.FindStringSubmatch(token)
			path := m[1]

			resolved := optic.GetAll(data, optic.Parse(path))
			if len(resolved) == 0 {
				return path
			}
			return renderSubst(resolved[0])
		})
	}

	if m := codePattern.FindStringSubmatch(s); m != nil {
		code := m[1]
		result, err := sandbox.Eval(environmentOf(data), code)
		if err != nil {
			log.Printf("[template] sandbox evaluation failed for %q: %v", code, err)
			metrics.RecordTemplateFailure()
			return s
		}
		return result
	}

	return s
}

func environmentOf(data interface{}) map[string]interface{} {
	if m, ok := data.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func castToString(value interface{}) interface{} {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(encoded)
	}
}

func castFromString(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

func renderSubst(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case []interface{}:
		parts := make([]string, len(v))
		for i, el := range v {
			parts[i] = renderSubst(el)
		}
		return strings.Join(parts, ", ")
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
