package form

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	values map[string]any
	fields []Field
	check  func(map[string]any) error
}

func newSample() *sample {
	return &sample{
		values: map[string]any{
			"name":    "alpha",
			"count":   3,
			"ratio":   0.5,
			"enabled": true,
			"tags":    []any{"a", "b"},
			"args":    map[string]any{"temperature": 0.7, "max_tokens": 256},
			"secret":  "sk-123",
			"notes":   "line one\nline two",
			"flavor":  "sweet",
		},
		fields: []Field{
			{Name: "name", Type: String, ResetOnCreate: true},
			{Name: "count", Type: Int},
			{Name: "ratio", Type: Float},
			{Name: "enabled", Type: Bool},
			{Name: "tags", Type: List},
			{Name: "args", Type: Dict},
			{Name: "secret", Type: SecretString},
			{Name: "notes", Type: LongString, ResetOnCreate: true},
			{Name: "flavor", Type: StringChoice, Choices: []string{"sweet", "sour"}},
		},
	}
}

func (s *sample) Fields(Mode) []Field   { return s.fields }
func (s *sample) Value(name string) any { return s.values[name] }

func (s *sample) SetValue(name string, v any) error {
	if name == "count" {
		if i, ok := v.(int); ok && i < 0 {
			return fmt.Errorf("must not be negative")
		}
	}
	s.values[name] = v
	return nil
}

func (s *sample) Validate() error {
	if s.check != nil {
		return s.check(s.values)
	}
	return nil
}

func TestSerializeCollectRoundTrip(t *testing.T) {
	icon := filepath.Join(t.TempDir(), "bot.png")
	require.NoError(t, os.WriteFile(icon, []byte("png"), 0o644))

	rec := newSample()
	rec.values["icon"] = icon
	rec.fields = append(rec.fields, Field{Name: "icon", Type: ImagePath})
	root, err := Serialize(rec, EditMode)
	require.NoError(t, err)
	require.Len(t, root.Children, len(rec.fields))

	in := InputsOf(root)
	_, ok := in["icon"]
	assert.False(t, ok, "image paths have no widget")

	got, err := Collect(root, in)
	require.NoError(t, err)
	for k, v := range rec.values {
		assert.Equal(t, v, got[k], k)
	}
	assert.Equal(t, icon, got["icon"])
}

func TestSerializeRejectsSeparatorInKey(t *testing.T) {
	rec := newSample()
	rec.values["args"] = map[string]any{"a" + Separator + "b": 1}
	_, err := Serialize(rec, EditMode)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestCollectNilDictValueBecomesEmptyString(t *testing.T) {
	rec := newSample()
	rec.values["args"] = map[string]any{"stop": nil}
	root, err := Serialize(rec, EditMode)
	require.NoError(t, err)

	stop, err := root.Lookup(Path{Key("args"), Key("stop")})
	require.NoError(t, err)
	assert.Equal(t, String, stop.Type)

	got, err := Collect(root, InputsOf(root))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stop": ""}, got["args"])
}

func TestSerializeCreateModeResets(t *testing.T) {
	root, err := Serialize(newSample(), CreateMode)
	require.NoError(t, err)

	name, err := root.Lookup(Path{Key("name")})
	require.NoError(t, err)
	assert.Equal(t, "", name.Value)

	notes, err := root.Lookup(Path{Key("notes")})
	require.NoError(t, err)
	assert.Equal(t, "", notes.Value)

	count, err := root.Lookup(Path{Key("count")})
	require.NoError(t, err)
	assert.Equal(t, 3, count.Value)
}

func TestSerializeInfersNestedTypes(t *testing.T) {
	root, err := Serialize(newSample(), ViewMode)
	require.NoError(t, err)

	args, err := root.Lookup(Path{Key("args")})
	require.NoError(t, err)
	require.Len(t, args.Children, 2)
	assert.Equal(t, "max_tokens", args.Children[0].Name)
	assert.Equal(t, Int, args.Children[0].Type)
	assert.Equal(t, "temperature", args.Children[1].Name)
	assert.Equal(t, Float, args.Children[1].Type)
}

func TestInfer(t *testing.T) {
	dir := t.TempDir()
	icon := filepath.Join(dir, "bot.png")
	require.NoError(t, os.WriteFile(icon, []byte("png"), 0o644))

	tests := []struct {
		title string
		value any
		want  Type
	}{
		{"flag", true, Bool},
		{"icon", icon, ImagePath},
		{"name", icon, LongString},
		{"icon", "missing.png", String},
		{"name", "short", String},
		{"description", strings.Repeat("x", 20), LongString},
		{"count", 4, Int},
		{"count", int64(4), Int},
		{"ratio", 1.5, Float},
		{"tags", []string{"a"}, List},
		{"args", map[string]any{}, Dict},
		{"empty", nil, String},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Infer(tt.title, tt.value, fileExists), "%s=%v", tt.title, tt.value)
	}
}

func TestMutateAddListItemStartsAtZero(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	require.NoError(t, Mutate(root, Path{Key("tags")}, Op{Kind: InsertEnd, Type: Int}))
	tags, _ := root.Lookup(Path{Key("tags")})
	require.Len(t, tags.Children, 3)
	assert.Equal(t, "2", tags.Children[2].Name)
	assert.Equal(t, 0, tags.Children[2].Value)

	got, err := Collect(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", 0}, got["tags"])
}

func TestMutateAddDictKey(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	require.NoError(t, Mutate(root, Path{Key("args")}, Op{Kind: InsertKey, Key: " top_p ", Type: Float}))
	got, err := Collect(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got["args"].(map[string]any)["top_p"])

	err = Mutate(root, Path{Key("args")}, Op{Kind: InsertKey, Key: "top_p", Type: Float})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = Mutate(root, Path{Key("args")}, Op{Kind: InsertKey, Key: "a|b", Type: String})
	assert.ErrorIs(t, err, ErrInvalidKey)

	err = Mutate(root, Path{Key("args")}, Op{Kind: InsertKey, Key: "x", Type: StringChoice})
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestMutateEmptyKeyLeavesTreeUntouched(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)
	before := InputsOf(root)

	err = Mutate(root, Path{Key("args")}, Op{Kind: InsertKey, Key: "  ", Type: String})
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.Equal(t, before, InputsOf(root))
	args, _ := root.Lookup(Path{Key("args")})
	assert.Len(t, args.Children, 2)
}

func TestMutateDeleteRenumbersList(t *testing.T) {
	rec := newSample()
	rec.values["tags"] = []any{"a", "b", "c"}
	root, err := Serialize(rec, EditMode)
	require.NoError(t, err)

	require.NoError(t, Mutate(root, Path{Key("tags"), Index(0)}, Op{Kind: Delete}))
	tags, _ := root.Lookup(Path{Key("tags")})
	require.Len(t, tags.Children, 2)
	assert.Equal(t, "0", tags.Children[0].Name)
	assert.Equal(t, "b", tags.Children[0].Value)
	assert.Equal(t, "1", tags.Children[1].Title)
}

func TestMutateRejectsInvalidPaths(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	assert.ErrorIs(t, Mutate(root, Path{}, Op{Kind: Delete}), ErrInvalidPath)
	assert.ErrorIs(t, Mutate(root, Path{Key("name")}, Op{Kind: Delete}), ErrInvalidPath)
	assert.ErrorIs(t, Mutate(root, Path{Key("tags"), Index(9)}, Op{Kind: Delete}), ErrInvalidPath)
	assert.ErrorIs(t, Mutate(root, Path{Key("name")}, Op{Kind: InsertEnd, Type: String}), ErrInvalidPath)
}

func TestParsePath(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	p, err := root.ParsePath("tags|1")
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.False(t, p[0].IsIndex())
	assert.True(t, p[1].IsIndex())
	assert.Equal(t, 1, p[1].Index())
	assert.Equal(t, "tags|1", p.String())

	_, err = root.ParsePath("tags|x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = root.ParsePath("missing")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = root.ParsePath("name|0")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCollectParsesInputs(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	got, err := Collect(root, Values{
		"count":            "7",
		"ratio":            "1.25",
		"enabled":          "False",
		"tags|0":           "z",
		"args|temperature": "0.1",
		"notes":            "a\r\nb",
		"flavor":           "sour",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got["count"])
	assert.Equal(t, 1.25, got["ratio"])
	assert.Equal(t, false, got["enabled"])
	assert.Equal(t, []any{"z", "b"}, got["tags"])
	assert.Equal(t, 0.1, got["args"].(map[string]any)["temperature"])
	assert.Equal(t, 256, got["args"].(map[string]any)["max_tokens"])
	assert.Equal(t, "a\nb", got["notes"])
	assert.Equal(t, "sour", got["flavor"])
	assert.Equal(t, "alpha", got["name"])
}

func TestCollectReportsEveryBadInput(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	_, err = Collect(root, Values{"count": "seven", "enabled": "maybe", "flavor": "bitter"})
	list := AsValidationErrors(err)
	require.Len(t, list, 3)
	assert.Equal(t, "count", list[0].Field)
	assert.Equal(t, "enabled", list[1].Field)
	assert.Equal(t, "flavor", list[2].Field)
}

func TestBoolFormatting(t *testing.T) {
	assert.Equal(t, "True", FormatValue(Bool, true))
	assert.Equal(t, "False", FormatValue(Bool, false))
	assert.Equal(t, "0.7", FormatValue(Float, 0.7))
	assert.Equal(t, "3", FormatValue(Float, 3.0))
}

func TestCreateReturnsValidationErrors(t *testing.T) {
	root, err := Serialize(newSample(), CreateMode)
	require.NoError(t, err)

	rec, err := Create(root, nil, func(values map[string]any) (Record, error) {
		var errs ValidationErrors
		if values["name"] == "" {
			errs.Add("name", "must not be empty")
		}
		if values["notes"] == "" {
			errs.Add("notes", "must not be empty")
		}
		if err := errs.Err(); err != nil {
			return nil, err
		}
		return &sample{values: values}, nil
	})
	assert.Nil(t, rec)
	assert.Equal(t, []string{"name: must not be empty", "notes: must not be empty"}, AsValidationErrors(err).Messages())

	rec, err = Create(root, Values{"name": "beta", "notes": "n"}, func(values map[string]any) (Record, error) {
		return &sample{values: values}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "beta", rec.Value("name"))
}

func TestValidateAndApplyRollsBack(t *testing.T) {
	rec := newSample()
	rec.check = func(v map[string]any) error {
		if v["name"] == "bad" {
			return FieldError{Field: "name", Message: "is bad"}
		}
		return nil
	}
	root, err := Serialize(rec, EditMode)
	require.NoError(t, err)

	err = ValidateAndApply(rec, root, Values{"name": "bad", "count": "9"})
	require.Error(t, err)
	assert.Equal(t, []string{"name: is bad"}, AsValidationErrors(err).Messages())
	assert.Equal(t, "alpha", rec.values["name"])
	assert.Equal(t, 3, rec.values["count"])

	err = ValidateAndApply(rec, root, Values{"name": "gamma", "count": "-1"})
	require.Error(t, err)
	assert.Equal(t, "alpha", rec.values["name"])
	assert.Equal(t, 3, rec.values["count"])

	require.NoError(t, ValidateAndApply(rec, root, Values{"name": "gamma", "count": "4"}))
	assert.Equal(t, "gamma", rec.values["name"])
	assert.Equal(t, 4, rec.values["count"])
}

func TestRenderInputNames(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, Render(&b, root, RenderOptions{Edit: true, Prefix: "m:"}))
	html := b.String()
	assert.Contains(t, html, `name="m:count"`)
	assert.Contains(t, html, `name="m:tags|1"`)
	assert.Contains(t, html, `name="m:args|temperature"`)
	assert.Contains(t, html, `type="password" name="m:secret"`)
	assert.Contains(t, html, `value="add:m:args"`)
	assert.Contains(t, html, `name="add-key:m:args"`)
	assert.Contains(t, html, `value="delete:m:tags|0"`)
	assert.Contains(t, html, `<option value="True" selected>`)

	b.Reset()
	require.NoError(t, Render(&b, root, RenderOptions{}))
	assert.NotContains(t, b.String(), "sk-123")
	assert.NotContains(t, b.String(), "<input")
}

func TestApplyActionKeepsEdits(t *testing.T) {
	root, err := Serialize(newSample(), EditMode)
	require.NoError(t, err)

	in := Values{
		"m:count":         "11",
		"add-type:m:tags": "INT",
	}
	structural, err := ApplyAction(root, "m:", "add:m:tags", in)
	require.NoError(t, err)
	assert.True(t, structural)

	got, err := Collect(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, got["count"])
	assert.Equal(t, []any{"a", "b", 0}, got["tags"])

	_, err = ApplyAction(root, "m:", "add:m:args", Values{"add-type:m:args": "STRING", "add-key:m:args": ""})
	assert.True(t, errors.Is(err, ErrEmptyKey))

	structural, err = ApplyAction(root, "m:", "save", in)
	require.NoError(t, err)
	assert.False(t, structural)
}
