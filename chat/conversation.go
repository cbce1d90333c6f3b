package chat

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-agent-chat/attachment"
	"github.com/microcosm-cc/bluemonday"
)

const Greeting = "Hello! I'm your AI assistant. How can I help you today?"

var (
	ErrEmptyMessage = errors.New("chat: message has no text and no attachments")
	ErrReplyPending = errors.New("chat: a reply is still pending")
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	ID          string                  `json:"id"`
	Sender      Sender                  `json:"sender"`
	Text        string                  `json:"text"`
	HTML        template.HTML           `json:"-"`
	Timestamp   time.Time               `json:"timestamp"`
	Attachments []attachment.Attachment `json:"attachments,omitempty"`
}

// Conversation is one client's current chat. It is not persisted.
type Conversation struct {
	backend Backend
	policy  *bluemonday.Policy

	mu       sync.Mutex
	id       string
	messages []Message
	pending  bool
	Tray     attachment.Tray
}

// NewReplyPolicy allows basic formatting in assistant replies and nothing
// executable.
func NewReplyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "pre", "code", "strong", "em")
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

func NewConversation(backend Backend) *Conversation {
	c := &Conversation{backend: backend, policy: NewReplyPolicy()}
	c.NewChat()
	return c
}

// NewChat starts over with only the greeting.
func (c *Conversation) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = "chat-" + uuid.New().String()
	c.messages = []Message{c.botMessage(Greeting, nil)}
	c.Tray.Clear()
}

func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Pending reports whether a reply is being waited on.
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Send appends the user message, calls the backend once and appends the
// reply. Blank text without attachments is rejected. A backend failure
// leaves the user message in place.
func (c *Conversation) Send(ctx context.Context, text string, attachments []attachment.Attachment) (Message, Message, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return Message{}, Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return Message{}, Message{}, ErrReplyPending
	}
	c.pending = true
	chatID := c.id
	user := Message{
		ID:          uuid.New().String(),
		Sender:      SenderUser,
		Text:        text,
		HTML:        template.HTML(template.HTMLEscapeString(text)),
		Timestamp:   time.Now(),
		Attachments: attachments,
	}
	c.messages = append(c.messages, user)
	c.mu.Unlock()

	reply, err := c.backend.SendMessage(ctx, text, attachments)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	if err != nil {
		return user, Message{}, err
	}
	bot := c.botMessage(reply.Text, reply.Attachments)
	// a NewChat while waiting discards the late reply
	if c.id == chatID {
		c.messages = append(c.messages, bot)
	}
	return user, bot, nil
}

func (c *Conversation) botMessage(text string, attachments []attachment.Attachment) Message {
	return Message{
		ID:          uuid.New().String(),
		Sender:      SenderBot,
		Text:        text,
		HTML:        template.HTML(c.policy.Sanitize(text)),
		Timestamp:   time.Now(),
		Attachments: attachments,
	}
}
