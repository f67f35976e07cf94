package form

import "fmt"

// Factory builds and validates a record from collected values.
type Factory func(values map[string]any) (Record, error)

// Create collects root and hands the values to factory. Every failure comes
// back as ValidationErrors and the record is nil.
func Create(root *Node, in Inputs, factory Factory) (Record, error) {
	values, err := Collect(root, in)
	if err != nil {
		return nil, AsValidationErrors(err)
	}
	rec, err := factory(values)
	if err != nil {
		return nil, AsValidationErrors(err)
	}
	if err := rec.Validate(); err != nil {
		return nil, AsValidationErrors(err)
	}
	return rec, nil
}

// ValidateAndApply assigns every collected field to rec and re-validates it.
// On any failure all assigned fields are restored to their previous values.
func ValidateAndApply(rec Record, root *Node, in Inputs) error {
	values, err := Collect(root, in)
	if err != nil {
		return AsValidationErrors(err)
	}

	type saved struct {
		name string
		v    any
	}
	var snapshot []saved
	rollback := func() {
		for i := len(snapshot) - 1; i >= 0; i-- {
			_ = rec.SetValue(snapshot[i].name, snapshot[i].v)
		}
	}

	var errs ValidationErrors
	for _, c := range root.Children {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		prev := rec.Value(c.Name)
		if err := rec.SetValue(c.Name, v); err != nil {
			errs = append(errs, AsValidationErrors(fieldErr(c.Name, err))...)
			continue
		}
		snapshot = append(snapshot, saved{name: c.Name, v: prev})
	}
	if len(errs) > 0 {
		rollback()
		return errs
	}
	if err := rec.Validate(); err != nil {
		rollback()
		return AsValidationErrors(err)
	}
	return nil
}

func fieldErr(name string, err error) error {
	if _, ok := err.(FieldError); ok {
		return err
	}
	if _, ok := err.(ValidationErrors); ok {
		return err
	}
	return FieldError{Field: name, Message: fmt.Sprint(err)}
}
