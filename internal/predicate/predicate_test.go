package predicate

import (
	"encoding/json"
	"testing"
)

func mustJSON(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid json fixture: %v", err)
	}
	return v
}

func mustSpec(t *testing.T, s string) Spec {
	t.Helper()
	var spec Spec
	if err := json.Unmarshal([]byte(s), &spec); err != nil {
		t.Fatalf("invalid spec fixture: %v", err)
	}
	return spec
}

func TestEmptySpecIsAlwaysTrue(t *testing.T) {
	ok, err := Validate(Spec{}, mustJSON(t, `{"a": 1}`))
	if err != nil || !ok {
		t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestEqualsKeyword(t *testing.T) {
	spec := mustSpec(t, `{"name": {"==": "peka"}}`)
	ok, err := Validate(spec, mustJSON(t, `{"name": "peka"}`))
	if err != nil || !ok {
		t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = Validate(spec, mustJSON(t, `{"name": "other"}`))
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestNotEqualsKeyword(t *testing.T) {
	spec := mustSpec(t, `{"name": {"!=": "peka"}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"name": "other"}`))
	if !ok {
		t.Error("expected true")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"name": "peka"}`))
	if ok {
		t.Error("expected false")
	}
}

func TestOrderingNumeric(t *testing.T) {
	spec := mustSpec(t, `{"age": {">=": 18, "<": 65}}`)
	ok, err := Validate(spec, mustJSON(t, `{"age": 30}`))
	if err != nil || !ok {
		t.Fatalf("got (%v, %v)", ok, err)
	}
	ok, err = Validate(spec, mustJSON(t, `{"age": 70}`))
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want false", ok, err)
	}
}

func TestOrderingLexicographic(t *testing.T) {
	spec := mustSpec(t, `{"name": {"<": "m"}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"name": "apple"}`))
	if !ok {
		t.Error("expected apple < m")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"name": "zebra"}`))
	if ok {
		t.Error("expected zebra not < m")
	}
}

func TestCrossKindOrderingFailsWithoutError(t *testing.T) {
	spec := mustSpec(t, `{"x": {"<": "a"}}`)
	ok, err := Validate(spec, mustJSON(t, `{"x": 5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for cross-kind comparison")
	}
}

func TestRegexMatch(t *testing.T) {
	spec := mustSpec(t, `{"id": {"~=": "^abc.*"}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"id": "abc123"}`))
	if !ok {
		t.Error("expected match")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"id": "xyz"}`))
	if ok {
		t.Error("expected no match")
	}
}

func TestSizeKeyword(t *testing.T) {
	spec := mustSpec(t, `{"items": {"size": 3}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"items": [1, 2, 3]}`))
	if !ok {
		t.Error("expected size match")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"items": [1, 2]}`))
	if ok {
		t.Error("expected size mismatch")
	}
}

func TestExistsKeyword(t *testing.T) {
	spec := mustSpec(t, `{"maybe": {"exists": true}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"maybe": 1}`))
	if !ok {
		t.Error("expected exists true")
	}
	ok, _ = Validate(spec, mustJSON(t, `{}`))
	if ok {
		t.Error("expected exists false when absent")
	}

	specAbsent := mustSpec(t, `{"maybe": {"exists": false}}`)
	ok, _ = Validate(specAbsent, mustJSON(t, `{}`))
	if !ok {
		t.Error("expected exists:false to hold for absent field")
	}
}

func TestMemberOfKeyword(t *testing.T) {
	spec := mustSpec(t, `{"status": {"[_]": ["ok", "pending"]}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"status": "ok"}`))
	if !ok {
		t.Error("expected membership match")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"status": "failed"}`))
	if ok {
		t.Error("expected no membership match")
	}
}

func TestNotMemberOfKeyword(t *testing.T) {
	spec := mustSpec(t, `{"status": {"![_]": ["failed"]}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"status": "ok"}`))
	if !ok {
		t.Error("expected non-membership to hold")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"status": "failed"}`))
	if ok {
		t.Error("expected non-membership to fail")
	}
}

func TestSupersetKeyword(t *testing.T) {
	spec := mustSpec(t, `{"tags": {"&[_]": ["a", "b"]}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"tags": ["a", "b", "c"]}`))
	if !ok {
		t.Error("expected superset match")
	}
	ok, _ = Validate(spec, mustJSON(t, `{"tags": ["a"]}`))
	if ok {
		t.Error("expected superset mismatch")
	}
}

func TestMalformedOperandReturnsError(t *testing.T) {
	spec := mustSpec(t, `{"x": {"size": "not-a-number"}}`)
	_, err := Validate(spec, mustJSON(t, `{"x": [1,2]}`))
	if err == nil {
		t.Error("expected an error for a malformed size operand")
	}
}

func TestAndJoinAcrossOpticsAndKeywords(t *testing.T) {
	spec := mustSpec(t, `{
		"name": {"==": "peka"},
		"age": {">=": 18}
	}`)
	ok, err := Validate(spec, mustJSON(t, `{"name": "peka", "age": 20}`))
	if err != nil || !ok {
		t.Fatalf("got (%v, %v)", ok, err)
	}
	ok, err = Validate(spec, mustJSON(t, `{"name": "peka", "age": 10}`))
	if err != nil || ok {
		t.Fatalf("got (%v, %v), want false", ok, err)
	}
}

func TestBroadcastOverArrayMatchesAnyElement(t *testing.T) {
	spec := mustSpec(t, `{"comments.text": {"==": "hi"}}`)
	ok, _ := Validate(spec, mustJSON(t, `{"comments": [{"text": "no"}, {"text": "hi"}]}`))
	if !ok {
		t.Error("expected broadcast match on second element")
	}
}
