package backend

import (
	"fmt"

	"github.com/user/chatverse/internal/form"
)

// ArgsRecord is the record behind the chat sidebar: the arguments a model
// requires, typed by its required_llm_arguments.
type ArgsRecord struct {
	fields []form.Field
	values map[string]any
}

func (r *ArgsRecord) Fields(form.Mode) []form.Field { return r.fields }
func (r *ArgsRecord) Value(name string) any         { return r.values[name] }

func (r *ArgsRecord) SetValue(name string, v any) error {
	for _, f := range r.fields {
		if f.Name == name {
			r.values[name] = v
			return nil
		}
	}
	return fmt.Errorf("%s: not a required argument", name)
}

func (r *ArgsRecord) Validate() error { return nil }

// Values returns a copy of the current arguments.
func (r *ArgsRecord) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
