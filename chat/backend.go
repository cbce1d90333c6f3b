// Package chat is the conversation surface behind the login gate. A Backend
// answers each user message; the Simulated backend stands in until a real
// AI service is configured.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-agent-chat/attachment"
)

const DefaultReplyDelay = 1500 * time.Millisecond

// Reply is the backend's answer to one message.
type Reply struct {
	Text        string                  `json:"text"`
	Attachments []attachment.Attachment `json:"attachments,omitempty"`
}

// Backend is called once per user-submitted message.
type Backend interface {
	SendMessage(ctx context.Context, text string, attachments []attachment.Attachment) (Reply, error)
}

// Simulated echoes the message back after a fixed delay.
type Simulated struct {
	delay time.Duration
}

func NewSimulated(delay time.Duration) *Simulated {
	return &Simulated{delay: delay}
}

func (s *Simulated) SendMessage(ctx context.Context, text string, attachments []attachment.Attachment) (Reply, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case <-timer.C:
		}
	}
	return Reply{Text: SimulatedText(text, len(attachments))}, nil
}

// SimulatedText is the templated echo of the simulated backend.
func SimulatedText(text string, files int) string {
	msg := "I received your message"
	if text != "" {
		msg += ": \"" + text + "\""
	}
	if files > 0 {
		msg += fmt.Sprintf(" and %d file(s)", files)
	}
	return msg + ". This is a simulated response. In a real implementation, this would connect to your LangGraph backend."
}
