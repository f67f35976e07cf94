package form

import (
	"embed"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/fields.html
var templateFS embed.FS

var fieldTemplates = template.Must(template.ParseFS(templateFS, "templates/fields.html"))

// Action prefixes carried by the submit buttons of an editable form.
const (
	actionAdd    = "add:"
	actionDelete = "delete:"
)

// RenderOptions controls how a tree is rendered.
type RenderOptions struct {
	Edit bool
	// Prefix is prepended to every input name so several forms can share a
	// page.
	Prefix string
	// ImageURL maps an IMAGE_PATH value to a browser URL.
	ImageURL func(path string) string
}

type widget struct {
	Kind      string
	Name      string
	Label     string
	Value     string
	Choices   []string
	Src       string
	Edit      bool
	Deletable bool
	Delete    string
	Add       string
	AddType   string
	AddKey    string
	IsDict    bool
	Types     []string
	Children  []widget
}

// Render writes the widgets of root to w.
func Render(w io.Writer, root *Node, opts RenderOptions) error {
	widgets := make([]widget, 0, len(root.Children))
	for _, c := range root.Children {
		widgets = append(widgets, toWidget(c, Path{Key(c.Name)}, opts, false))
	}
	return fieldTemplates.ExecuteTemplate(w, "fields", widgets)
}

func toWidget(n *Node, p Path, opts RenderOptions, deletable bool) widget {
	name := opts.Prefix + p.String()
	w := widget{
		Name:      name,
		Label:     n.Title,
		Edit:      opts.Edit,
		Deletable: opts.Edit && deletable,
		Delete:    actionDelete + name,
	}
	switch n.Type {
	case List, Dict:
		w.Kind = strings.ToLower(n.Type.String())
		w.IsDict = n.Type == Dict
		w.Add = actionAdd + name
		w.AddType = AddTypeInput(name)
		w.AddKey = AddKeyInput(name)
		for _, t := range AddableTypes {
			w.Types = append(w.Types, t.String())
		}
		for i, c := range n.Children {
			seg := Key(c.Name)
			if n.Type == List {
				seg = Index(i)
			}
			w.Children = append(w.Children, toWidget(c, p.Child(seg), opts, true))
		}
		return w
	case Bool:
		w.Kind = "bool"
		w.Choices = []string{"True", "False"}
	case Int, Float:
		w.Kind = "number"
	case SecretString:
		w.Kind = "secret"
	case LongString:
		w.Kind = "long"
	case StringChoice:
		w.Kind = "choice"
		w.Choices = n.Choices
	case ImagePath:
		w.Kind = "image"
		src, _ := n.Value.(string)
		if opts.ImageURL != nil {
			src = opts.ImageURL(src)
		}
		w.Src = src
	default:
		w.Kind = "text"
	}
	w.Value = FormatValue(n.Type, n.Value)
	return w
}

// AddTypeInput is the name of the type select beside a container's add
// button.
func AddTypeInput(name string) string { return "add-type:" + name }

// AddKeyInput is the name of the key input beside a dict's add button.
func AddKeyInput(name string) string { return "add-key:" + name }

// ParseAction splits a submitted action value into its verb and the input
// name of the node it targets. Verbs other than add and delete are returned
// with an empty name.
func ParseAction(action string) (verb, name string) {
	switch {
	case strings.HasPrefix(action, actionAdd):
		return "add", strings.TrimPrefix(action, actionAdd)
	case strings.HasPrefix(action, actionDelete):
		return "delete", strings.TrimPrefix(action, actionDelete)
	}
	return action, ""
}
