package optic

import (
	"encoding/json"
	"reflect"
	"testing"
)

func parseJSON(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid json fixture: %v", err)
	}
	return v
}

func TestParseAndString(t *testing.T) {
	cases := []string{
		"extras.comments.[0].text",
		"a",
		"a.[4]",
		"",
	}
	for _, c := range cases {
		o := Parse(c)
		if got := o.String(); got != c {
			t.Errorf("Parse(%q).String() = %q, want %q", c, got, c)
		}
	}
}

func TestGetAllDescends(t *testing.T) {
	data := parseJSON(t, `{
		"description": "Some description",
		"extras": {
			"fields": ["f1", "f2"],
			"topic": "Main topic",
			"comments": [{"text": "First"}, {"text": "Second"}]
		}
	}`)

	cases := []struct {
		path string
		want interface{}
	}{
		{"description", "Some description"},
		{"extras.topic", "Main topic"},
		{"extras.comments.[0].text", "First"},
		{"extras.fields.[0]", "f1"},
	}

	for _, c := range cases {
		got := GetAll(data, Parse(c.path))
		if len(got) != 1 || got[0] != c.want {
			t.Errorf("GetAll(%q) = %v, want [%v]", c.path, got, c.want)
		}
	}
}

func TestGetAllMissingYieldsEmpty(t *testing.T) {
	data := parseJSON(t, `{"a": 1}`)
	got := GetAll(data, Parse("b.c"))
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}

func TestGetAllBroadcastsOverArrays(t *testing.T) {
	data := parseJSON(t, `{"comments": [{"text": "a"}, {"text": "b"}, {}]}`)
	got := GetAll(data, Parse("comments.text"))
	if !reflect.DeepEqual(got, []interface{}{"a", "b"}) {
		t.Errorf("GetAll broadcast = %v", got)
	}
}

func TestExists(t *testing.T) {
	data := parseJSON(t, `{"a": {"b": null}}`)
	if !Exists(data, Parse("a.b")) {
		t.Error("expected a.b to exist (present, even if null)")
	}
	if Exists(data, Parse("a.c")) {
		t.Error("expected a.c to not exist")
	}
}

func TestSetCreatesIntermediateObjects(t *testing.T) {
	var root interface{} = map[string]interface{}{}
	Set(&root, Parse("a.b.c"), "v")

	got := GetAll(root, Parse("a.b.c"))
	if len(got) != 1 || got[0] != "v" {
		t.Errorf("Set then GetAll = %v", got)
	}
}

func TestSetPadsArraysWithNull(t *testing.T) {
	var root interface{} = map[string]interface{}{
		"a2": []interface{}{"e1", "e2", "e3"},
	}
	Set(&root, Parse("a2.[4]"), "nondesc")

	arr := root.(map[string]interface{})["a2"].([]interface{})
	if len(arr) != 5 {
		t.Fatalf("expected array length 5, got %d", len(arr))
	}
	if arr[3] != nil {
		t.Errorf("expected padding nil at index 3, got %v", arr[3])
	}
	if arr[4] != "nondesc" {
		t.Errorf("expected %q at index 4, got %v", "nondesc", arr[4])
	}
}

func TestAppendPath(t *testing.T) {
	got := AppendPath(Parse("__query"), Parse("id"))
	if got.String() != "__query.id" {
		t.Errorf("AppendPath = %q", got.String())
	}
}
