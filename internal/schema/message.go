// Package schema defines the validated records the UI edits and displays:
// chat messages, model descriptions, group agents and their settings.
package schema

import (
	"fmt"
	"os"
	"time"
)

// MessageType tags who produced a message.
type MessageType string

const (
	MessageSystem MessageType = "SYSTEM"
	MessageUser   MessageType = "USER"
	MessageAI     MessageType = "AI"
)

// Message is one entry in a model's conversation history.
type Message struct {
	Text      string
	Type      MessageType
	Timestamp time.Time
}

// NewMessage stamps a message with the current time.
func NewMessage(typ MessageType, text string) Message {
	return Message{Text: text, Type: typ, Timestamp: time.Now()}
}

// GroupMessage is one entry in a group agent transcript.
type GroupMessage struct {
	SenderName string
	Icon       string
	Text       string
	Timestamp  time.Time
	Type       MessageType
}

// AttachmentMessage is a group message whose text is a path to a file the
// sender produced.
type AttachmentMessage struct {
	GroupMessage
	AttachmentType string
}

// NewAttachmentMessage fails when path does not exist.
func NewAttachmentMessage(sender, icon, path, attachmentType string) (*AttachmentMessage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file %s does not exist", path)
	}
	return &AttachmentMessage{
		GroupMessage: GroupMessage{
			SenderName: sender,
			Icon:       icon,
			Text:       path,
			Timestamp:  time.Now(),
			Type:       MessageAI,
		},
		AttachmentType: attachmentType,
	}, nil
}
