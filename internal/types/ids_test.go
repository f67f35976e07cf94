// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewIDsAreUUIDs(t *testing.T) {
	for _, id := range []string{
		string(NewSessionID()),
		string(NewRunID()),
		string(NewConversationID()),
		string(NewArtifactID()),
	} {
		if len(id) != 36 {
			t.Errorf("expected UUID format, got %s", id)
		}
	}
	if NewSessionID() == NewSessionID() {
		t.Error("expected distinct session IDs")
	}
}

func TestSessionKeyFormat(t *testing.T) {
	key := NewSessionKey("web", "3f2a")
	expected := SessionKey("web:3f2a")
	if key != expected {
		t.Errorf("expected %s, got %s", expected, key)
	}
}
