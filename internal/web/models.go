package web

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/user/chatverse/internal/backend"
	"github.com/user/chatverse/internal/form"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

// modelPrefix namespaces the model form inputs.
const modelPrefix = "model:"

type modelCard struct {
	Key         string
	Name        string
	Description string
	IconURL     string
}

type focusPanel struct {
	Mode          string
	Key           string
	Name          string
	Form          template.HTML
	Bases         []option
	Conversations []string
}

type modelsView struct {
	Tab        string
	Session    []modelCard
	Persistent []modelCard
	Focus      *focusPanel
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		if tab := r.URL.Query().Get("tab"); tab == tabSession || tab == tabPersistent {
			d.Tab = tab
		}
		view, err := s.modelsView(d)
		if err != nil {
			d.notify(levelError, "%v", err)
			d.Focus = modelFocus{}
		}
		s.render(w, "models", "Edit and Create LLM Model", d, view)
	})
}

func (s *Server) cards(list []*schema.ModelMetaInfo) []modelCard {
	out := make([]modelCard, 0, len(list))
	for _, m := range list {
		out = append(out, modelCard{Key: m.Key, Name: m.Name, Description: m.Description, IconURL: s.assetURL(m.Icon)})
	}
	return out
}

func (s *Server) modelsView(d *sessionData) (*modelsView, error) {
	view := &modelsView{
		Tab:        d.Tab,
		Session:    s.cards(d.SessionModels()),
		Persistent: s.cards(d.PersistentModels()),
	}
	f := d.Focus
	if f.Mode == focusNone {
		return view, nil
	}

	fv := &focusPanel{Mode: f.Mode, Key: f.Key}
	switch f.Mode {
	case focusCreate:
		for _, m := range d.Models {
			fv.Bases = append(fv.Bases, option{Key: m.Key, Name: m.Name, Selected: m.Key == f.Base})
		}
	case focusConfirm:
		m, err := d.Model(f.Key)
		if err != nil {
			return view, err
		}
		fv.Name = m.Name
		for _, c := range d.Conversations {
			if c.ModelKey == m.Key {
				fv.Conversations = append(fv.Conversations, c.Topic)
			}
		}
		view.Focus = fv
		return view, nil
	default:
		m, err := d.Model(f.Key)
		if err != nil {
			return view, err
		}
		fv.Name = m.Name
	}

	html, err := renderForm(f.Tree, form.RenderOptions{
		Edit:     f.Mode != focusView,
		Prefix:   modelPrefix,
		ImageURL: s.assetURL,
	})
	if err != nil {
		return view, err
	}
	fv.Form = html
	view.Focus = fv
	return view, nil
}

var errPersistent = errors.New("persistent models can only be viewed")

// handleModelFocus opens a model in view, edit or delete-confirmation mode.
func (s *Server) handleModelFocus(w http.ResponseWriter, r *http.Request) {
	key, mode := r.PathValue("key"), r.PathValue("mode")
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		m, err := d.Model(key)
		if err != nil {
			d.notify(levelWarning, "%v", err)
			return
		}
		switch mode {
		case focusView:
			tree, err := form.Serialize(m, form.ViewMode)
			if err != nil {
				d.notifyErr(err)
				return
			}
			d.Focus = modelFocus{Mode: focusView, Key: key, Tree: tree}
		case focusEdit:
			if m.IsPersistent {
				d.notify(levelWarning, "%v", errPersistent)
				return
			}
			tree, err := form.Serialize(m, form.EditMode)
			if err != nil {
				d.notifyErr(err)
				return
			}
			d.Focus = modelFocus{Mode: focusEdit, Key: key, Tree: tree}
		case focusConfirm:
			if m.IsPersistent {
				d.notify(levelWarning, "%v", errPersistent)
				return
			}
			d.Focus = modelFocus{Mode: focusConfirm, Key: key}
		default:
			d.notify(levelWarning, "unknown mode %q", mode)
		}
	})
	redirect(w, r, "/models")
}

// createFocus starts the create form from base.
func createFocus(base *schema.ModelMetaInfo) (modelFocus, error) {
	tree, err := form.Serialize(backend.NewModelFrom(base), form.CreateMode)
	if err != nil {
		return modelFocus{}, err
	}
	return modelFocus{Mode: focusCreate, Base: base.Key, Tree: tree}, nil
}

func (s *Server) handleModelNew(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		base := d.Chosen()
		if base == nil {
			d.notify(levelWarning, "%v", errNoModels)
			return
		}
		f, err := createFocus(base)
		if err != nil {
			d.notifyErr(err)
			return
		}
		d.Focus = f
		d.Tab = tabSession
	})
	redirect(w, r, "/models")
}

// handleModelBase switches the model a new model inherits from. The form
// starts over from the new base.
func (s *Server) handleModelBase(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("base")
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		if d.Focus.Mode != focusCreate {
			return
		}
		base, err := d.Model(key)
		if err != nil {
			d.notify(levelWarning, "%v", err)
			return
		}
		f, err := createFocus(base)
		if err != nil {
			d.notifyErr(err)
			return
		}
		d.Focus = f
	})
	redirect(w, r, "/models")
}

// handleModelForm handles every button of the model form: structural add
// and delete, save, create and cancel.
func (s *Server) handleModelForm(w http.ResponseWriter, r *http.Request) {
	in := formInputs(r)
	action := in["action"]
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		f := &d.Focus
		if action == "cancel" {
			d.Focus = modelFocus{}
			return
		}
		if f.Tree == nil || f.Mode == focusView || f.Mode == focusConfirm {
			return
		}

		structural, err := form.ApplyAction(f.Tree, modelPrefix, action, in)
		if structural {
			switch {
			case errors.Is(err, form.ErrEmptyKey):
				d.notify(levelWarning, "Please enter a valid key")
			case err != nil:
				d.notify(levelWarning, "%v", err)
			}
			return
		}

		inputs := form.PrefixedInputs{Prefix: modelPrefix, Inputs: in}
		switch {
		case action == "save" && f.Mode == focusEdit:
			s.saveModel(d, inputs)
		case action == "create" && f.Mode == focusCreate:
			s.createModel(d, inputs)
		}
	})
	redirect(w, r, "/models")
}

func (s *Server) saveModel(d *sessionData, in form.Inputs) {
	m, err := d.Model(d.Focus.Key)
	if err != nil {
		d.notify(levelWarning, "%v", err)
		return
	}
	if name, ok := in.Lookup("name"); ok {
		if err := d.CheckName(name, m.Key); err != nil {
			keepEdits(d, in)
			d.notify(levelWarning, "%v", err)
			return
		}
	}
	if err := form.ValidateAndApply(m, d.Focus.Tree, in); err != nil {
		keepEdits(d, in)
		d.notifyErr(err)
		return
	}
	d.Focus = modelFocus{}
	d.notify(levelSuccess, "Model %s saved", m.Name)
}

func (s *Server) createModel(d *sessionData, in form.Inputs) {
	base, err := d.Model(d.Focus.Base)
	if err != nil {
		d.notify(levelWarning, "%v", err)
		return
	}
	if name, ok := in.Lookup("name"); ok {
		if err := d.CheckName(name, ""); err != nil {
			keepEdits(d, in)
			d.notify(levelWarning, "%v", err)
			return
		}
	}
	rec, err := form.Create(d.Focus.Tree, in, backend.ModelFactory(base))
	if err != nil {
		keepEdits(d, in)
		d.notifyErr(err)
		return
	}
	m := rec.(*schema.ModelMetaInfo)
	if err := d.AddSessionModel(m); err != nil {
		keepEdits(d, in)
		d.notify(levelWarning, "%v", err)
		return
	}
	d.Focus = modelFocus{}
	d.Tab = tabSession
	d.notify(levelSuccess, "Model %s created", m.Name)
}

// keepEdits writes the submitted values into the focused form so a rejected
// save renders what the user typed. Values that do not parse keep their
// stored value; validation already reported them.
func keepEdits(d *sessionData, in form.Inputs) {
	if d.Focus.Tree != nil {
		_ = form.Absorb(d.Focus.Tree, in)
	}
}

func (s *Server) handleModelDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		m, err := d.Model(key)
		if err != nil {
			d.notify(levelWarning, "%v", err)
			return
		}
		if m.IsPersistent {
			d.notify(levelWarning, "%v", errPersistent)
			return
		}
		if err := d.DeleteModel(key); err != nil {
			d.notify(levelWarning, "%v", err)
			return
		}
		d.Focus = modelFocus{}
		d.notify(levelSuccess, "Model %s deleted", m.Name)
	})
	redirect(w, r, "/models")
}
