package web

import (
	"fmt"

	"github.com/user/chatverse/internal/backend"
	"github.com/user/chatverse/internal/form"
	"github.com/user/chatverse/internal/state"
)

// Notice levels.
const (
	levelInfo    = "info"
	levelSuccess = "success"
	levelWarning = "warning"
	levelError   = "error"
)

type notice struct {
	Level string
	Text  string
}

// Focus modes of the models page.
const (
	focusNone    = ""
	focusView    = "view"
	focusEdit    = "edit"
	focusCreate  = "create"
	focusConfirm = "confirm"
)

// Models page tabs.
const (
	tabSession    = "session"
	tabPersistent = "persistent"
)

// modelFocus is the model the models page is working on. Tree holds the
// form while it is edited so that unsaved changes survive add and delete.
type modelFocus struct {
	Mode string
	Key  string
	Base string
	Tree *form.Node
}

// sessionData is what one browser session keeps between requests.
type sessionData struct {
	*backend.State
	Tab     string
	Focus   modelFocus
	notices []notice
}

func (d *sessionData) notify(level, format string, args ...any) {
	d.notices = append(d.notices, notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// notifyErr shows one warning per validation failure in err.
func (d *sessionData) notifyErr(err error) {
	for _, msg := range form.AsValidationErrors(err).Messages() {
		d.notify(levelWarning, "%s", msg)
	}
}

func (d *sessionData) takeNotices() []notice {
	out := d.notices
	d.notices = nil
	return out
}

// Sessions holds the browser sessions of a Server.
type Sessions = state.SessionStore[*sessionData]

// NewSessions creates a session store whose sessions start from the
// backend's current catalog.
func NewSessions(b *backend.Backend) *Sessions {
	return state.NewSessionStore(func() *sessionData {
		return &sessionData{State: b.NewState(), Tab: tabSession}
	})
}
