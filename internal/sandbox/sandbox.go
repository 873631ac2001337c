// Package sandbox evaluates short scripts against a fixed set of
// variables in an isolated JavaScript runtime, yielding a JSON value.
//
// Every Eval call builds a fresh goja.Runtime and discards it afterwards;
// no state is shared between evaluations (see TestEvaluationsDoNotShareState
// for the isolation property this guarantees).
package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// prelude is evaluated into every fresh runtime before the user's code.
// It exposes the fixed helper surface the template engine's %{...} tokens
// may call.
const prelude = `
function randomString() {
	var alphabet, min, max;
	if (arguments.length >= 2) {
		alphabet = arguments[0];
		min = arguments[1];
		max = arguments.length >= 3 ? arguments[2] : arguments[1] + 1;
	} else {
		alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789";
		min = arguments[0];
		max = arguments[0] + 1;
	}
	var len = randomInt(min, max);
	var out = "";
	for (var i = 0; i < len; i++) {
		out += alphabet.charAt(Math.floor(Math.random() * alphabet.length));
	}
	return out;
}

function randomInt() {
	var min, max;
	if (arguments.length >= 2) {
		min = arguments[0];
		max = arguments[1];
	} else {
		min = 0;
		max = arguments[0];
	}
	return min + Math.floor(Math.random() * (max - min));
}

function randomLong() {
	return randomInt.apply(null, arguments);
}

function UUID() {
	return __uuid();
}
`

// Eval runs code in a fresh runtime seeded with environment, and returns
// the JSON value of its final expression.
func Eval(environment map[string]interface{}, code string) (interface{}, error) {
	vm := goja.New()

	if _, err := vm.RunString(prelude); err != nil {
		return nil, fmt.Errorf("sandbox: failed to install prelude: %w", err)
	}
	vm.Set("__uuid", newUUID)

	for name, value := range environment {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("sandbox: failed to encode variable %q: %w", name, err)
		}
		stmt := fmt.Sprintf("var %s = %s;", name, string(encoded))
		if _, err := vm.RunString(stmt); err != nil {
			return nil, fmt.Errorf("sandbox: failed to bind variable %q: %w", name, err)
		}
	}

	result, err := vm.RunString(code)
	if err != nil {
		return nil, fmt.Errorf("sandbox: evaluation failed: %w", err)
	}

	return exportJSON(result), nil
}

// exportJSON normalizes a goja export to JSON-shaped Go values
// (map[string]interface{}, []interface{}, string, float64, bool, nil)
// by round-tripping through encoding/json.
func exportJSON(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	exported := v.Export()
	encoded, err := json.Marshal(exported)
	if err != nil {
		return exported
	}
	var normalized interface{}
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return exported
	}
	return normalized
}
