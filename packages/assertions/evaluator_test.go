package assertions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonOutput(body string) *Output {
	return &Output{Stdout: []byte(body), Duration: 120 * time.Millisecond}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in      string
		want    Operator
		wantErr bool
	}{
		{"equals", OpEquals, false},
		{"==", OpEquals, false},
		{">=", OpGreaterOrEqual, false},
		{"startsWith", OpStartsWith, false},
		{"NOT_CONTAINS", OpNotContains, false},
		{" exists ", OpExists, false},
		{"approximately", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperator(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Len(t, Operators(), 22)
}

func TestEvaluator_ExitCode(t *testing.T) {
	e := NewEvaluator(&Output{ExitCode: 3})

	result := e.Evaluate(&Assertion{Subject: "exit_code", Operator: OpEquals, Expected: 3})
	assert.True(t, result.Passed)
	assert.Equal(t, 3, result.Actual)

	result = e.Evaluate(&Assertion{Subject: "exit_code", Operator: OpNotEquals, Expected: 0})
	assert.True(t, result.Passed)
}

func TestEvaluator_Text(t *testing.T) {
	e := NewEvaluator(&Output{Stdout: []byte("hello world\nsecond line\n"), Stderr: []byte("warning: x")})

	tests := []struct {
		name      string
		assertion Assertion
		passed    bool
	}{
		{"stdout contains", Assertion{"stdout", OpContains, "world"}, true},
		{"stdout not contains", Assertion{"stdout", OpNotContains, "mars"}, true},
		{"stdout starts with", Assertion{"stdout", OpStartsWith, "hello"}, true},
		{"stdout ends with", Assertion{"stdout", OpEndsWith, "line\n"}, true},
		{"stdout matches", Assertion{"stdout", OpMatches, "/^hello \\w+/"}, true},
		{"stdout invalid regex", Assertion{"stdout", OpMatches, "("}, false},
		{"stderr contains", Assertion{"stderr", OpContains, "warning"}, true},
		{"line count", Assertion{"lines", OpLength, 2}, true},
		{"lines include", Assertion{"lines", OpIncludes, "second line"}, true},
		{"lines not include", Assertion{"lines", OpNotIncludes, "third line"}, true},
		{"stdout is not json", Assertion{"json", OpExists, nil}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(&tt.assertion)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluator_JSONPath(t *testing.T) {
	e := NewEvaluator(jsonOutput(`{"user": {"name": "John", "age": 30, "tags": ["a", "b"]}, "items": [{"id": 1}, {"id": 2}]}`))

	tests := []struct {
		name      string
		assertion Assertion
		passed    bool
	}{
		{"nested path equals", Assertion{"json.user.name", OpEquals, "John"}, true},
		{"numeric equals int", Assertion{"json.user.age", OpEquals, 30}, true},
		{"numeric equals string", Assertion{"json.user.age", OpEquals, "30"}, true},
		{"greater than", Assertion{"json.user.age", OpGreaterThan, 18}, true},
		{"less or equal", Assertion{"json.user.age", OpLessOrEqual, 29}, false},
		{"non numeric comparison", Assertion{"json.user.name", OpGreaterThan, 1}, false},
		{"bracket notation", Assertion{"json.items[1].id", OpEquals, 2}, true},
		{"array length", Assertion{"json.items", OpLength, 2}, true},
		{"array includes", Assertion{"json.user.tags", OpIncludes, "b"}, true},
		{"value in list", Assertion{"json.user.name", OpIn, []any{"Jane", "John"}}, true},
		{"value not in list", Assertion{"json.user.name", OpNotIn, []any{"Jane"}}, true},
		{"in needs a list", Assertion{"json.user.name", OpIn, "John"}, false},
		{"exists", Assertion{"json.user", OpExists, nil}, true},
		{"missing path", Assertion{"json.user.email", OpExists, nil}, false},
		{"not exists", Assertion{"json.user.email", OpNotExists, nil}, true},
		{"type object", Assertion{"json.user", OpType, "object"}, true},
		{"type array", Assertion{"json.items", OpType, "array"}, true},
		{"type number", Assertion{"json.user.age", OpType, "number"}, true},
		{"type mismatch", Assertion{"json.user.name", OpType, "number"}, false},
		{"each with operator", Assertion{"json.items", OpEach, map[string]any{"operator": "type", "value": "object"}}, true},
		{"each plain value", Assertion{"json.user.tags", OpEach, "a"}, false},
		{"each rejects nesting", Assertion{"json.items", OpEach, map[string]any{"operator": "each", "value": 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(&tt.assertion)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluator_LengthReportsComputedLength(t *testing.T) {
	e := NewEvaluator(jsonOutput(`{"items": [1, 2, 3]}`))
	result := e.Evaluate(&Assertion{Subject: "json.items", Operator: OpLength, Expected: 2})
	assert.False(t, result.Passed)
	assert.Equal(t, 3, result.Actual)
	assert.Equal(t, "expected length 2, got 3", result.Message)
}

func TestEvaluator_Duration(t *testing.T) {
	e := NewEvaluator(&Output{Duration: 120 * time.Millisecond})
	assert.True(t, e.Evaluate(&Assertion{Subject: "duration", Operator: OpLessThan, Expected: 500}).Passed)
	assert.False(t, e.Evaluate(&Assertion{Subject: "duration", Operator: OpLessThan, Expected: 100}).Passed)
}

func TestEvaluator_UnknownSubject(t *testing.T) {
	e := NewEvaluator(&Output{})
	result := e.Evaluate(&Assertion{Subject: "status", Operator: OpEquals, Expected: 200})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "unknown subject")
}

func TestEvaluator_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := `{"type": "object", "required": ["id"], "properties": {"id": {"type": "integer"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(schema), 0644))

	valid := NewEvaluator(jsonOutput(`{"id": 1}`), WithBaseDir(dir))
	result := valid.Evaluate(&Assertion{Subject: "json", Operator: OpSchema, Expected: "schema.json"})
	assert.True(t, result.Passed, result.Message)

	invalid := NewEvaluator(jsonOutput(`{"name": "x"}`), WithBaseDir(dir))
	result = invalid.Evaluate(&Assertion{Subject: "json", Operator: OpSchema, Expected: "schema.json"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "schema validation failed")

	inline := NewEvaluator(jsonOutput(`[1, 2]`))
	result = inline.Evaluate(&Assertion{Subject: "json", Operator: OpSchema, Expected: map[string]any{"type": "array"}})
	assert.True(t, result.Passed, result.Message)
}

func TestEvaluator_Schema_PathTraversal(t *testing.T) {
	dir := t.TempDir()
	e := NewEvaluator(jsonOutput(`{}`), WithBaseDir(dir))
	result := e.Evaluate(&Assertion{Subject: "json", Operator: OpSchema, Expected: "../../etc/passwd"})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "path traversal")
}

func TestCheck(t *testing.T) {
	out := jsonOutput(`{"ok": true}`)

	assert.NoError(t, Check(out, []*Assertion{
		{Subject: "json.ok", Operator: OpEquals, Expected: true},
		{Subject: "exit_code", Operator: OpEquals, Expected: 0},
	}))

	err := Check(out, []*Assertion{
		{Subject: "json.ok", Operator: OpEquals, Expected: false},
		{Subject: "exit_code", Operator: OpEquals, Expected: 0},
		{Subject: "stdout", Operator: OpContains, Expected: "nope"},
	})
	require.Error(t, err)
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Len(t, failure.Results, 2)
	assert.Equal(t, `json.ok equals: expected false, got true; stdout contains: expected '{"ok": true}' to contain 'nope'`, err.Error())
}

func TestValidatePathWithinBase(t *testing.T) {
	base := t.TempDir()
	assert.NoError(t, validatePathWithinBase(filepath.Join(base, "a", "b.json"), base))
	assert.NoError(t, validatePathWithinBase(base, base))
	assert.Error(t, validatePathWithinBase(filepath.Join(base, "..", "x.json"), base))
	assert.NoError(t, validatePathWithinBase("/anywhere", ""))
}

func TestAssertion_String(t *testing.T) {
	assert.Equal(t, "json.id exists", (&Assertion{Subject: "json.id", Operator: OpExists}).String())
	assert.Equal(t, "exit_code equals 0", (&Assertion{Subject: "exit_code", Operator: OpEquals, Expected: 0}).String())
}

type fakeSnapshots map[string]any

func (f fakeSnapshots) Compare(name string, actual any) (bool, string, any) {
	expected, ok := f[name]
	if !ok {
		return false, "missing", nil
	}
	if expected != actual {
		return false, "snapshot mismatch", expected
	}
	return true, "", expected
}

func TestEvaluator_Snapshot(t *testing.T) {
	out := &Output{Stdout: []byte(`{"name":"ada"}`)}
	snaps := fakeSnapshots{"json.name": "ada", "body": `{"name":"ada"}`}

	t.Run("names the snapshot after the subject by default", func(t *testing.T) {
		r := NewEvaluator(out, WithSnapshots(snaps)).Evaluate(&Assertion{Subject: "json.name", Operator: OpSnapshot})
		assert.True(t, r.Passed, r.Message)
	})

	t.Run("uses the expected value as name", func(t *testing.T) {
		r := NewEvaluator(out, WithSnapshots(snaps)).Evaluate(&Assertion{Subject: "stdout", Operator: OpSnapshot, Expected: "body"})
		assert.True(t, r.Passed, r.Message)
	})

	t.Run("reports the stored value on mismatch", func(t *testing.T) {
		r := NewEvaluator(&Output{Stdout: []byte(`{"name":"bob"}`)}, WithSnapshots(snaps)).
			Evaluate(&Assertion{Subject: "json.name", Operator: OpSnapshot})
		assert.False(t, r.Passed)
		assert.Equal(t, "ada", r.Expected)
		assert.Equal(t, "bob", r.Actual)
	})

	t.Run("fails without a store", func(t *testing.T) {
		r := NewEvaluator(out).Evaluate(&Assertion{Subject: "stdout", Operator: OpSnapshot})
		assert.False(t, r.Passed)
		assert.Equal(t, "snapshots are not enabled", r.Message)
	})
}
