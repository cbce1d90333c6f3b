package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-agent-chat/attachment"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/server/clientregistry"
	"github.com/jrsteele09/go-agent-chat/session"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// Frame types exchanged on the chat socket.
const (
	frameMessage = "message"
	frameNewChat = "new_chat"
	framePending = "pending"
	frameSession = "session"
	frameReset   = "reset"
	frameError   = "error"
)

type wsAttachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"` // base64
}

type wsInbound struct {
	Type        string         `json:"type"`
	Text        string         `json:"text"`
	Attachments []wsAttachment `json:"attachments"`
}

type wsOutbound struct {
	Type     string            `json:"type"`
	Message  *chat.Message     `json:"message,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Pending  bool              `json:"pending,omitempty"`
	Session  *session.Session  `json:"session,omitempty"`
	Messages []MessageResponse `json:"messages,omitempty"`
	ChatID   string            `json:"chatId,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host || s.config.GetAllowedOrigins().IsAllowedOrigin(origin)
		},
	}
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(frame wsOutbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// ChatWebSocketHandler carries the conversation over a websocket
// (GET /chat/ws). The socket closes when the client is signed out.
func (s *Server) ChatWebSocketHandler() http.HandlerFunc {
	upgrader := s.upgrader()
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		maxBytes := s.config.GetChatMaxUploadBytes()
		conn.SetReadLimit(maxBytes*4/3 + multipartSlack)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		ws := &wsConn{conn: conn}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.watchSession(ctx, inst, ws)
		}()

		for {
			var in wsInbound
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("client", inst.ID).Msg("websocket closed")
				}
				break
			}

			switch in.Type {
			case frameMessage:
				attachments, err := decodeWSAttachments(in.Attachments, maxBytes)
				if err != nil {
					_ = ws.send(wsOutbound{Type: frameError, Error: err.Error()})
					continue
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.wsSend(ctx, inst, ws, in.Text, attachments)
				}()
			case frameNewChat:
				inst.Chat.NewChat()
				_ = ws.send(wsOutbound{Type: frameReset, ChatID: inst.Chat.ID(), Messages: s.messageResponses(inst.Chat.Messages())})
			default:
				_ = ws.send(wsOutbound{Type: frameError, Error: "unknown frame type"})
			}
		}

		cancel()
		wg.Wait()
	}
}

// watchSession forwards session changes, pings the peer and closes the
// socket once the client is no longer authenticated.
func (s *Server) watchSession(ctx context.Context, inst *clientregistry.Instance, ws *wsConn) {
	updates, unsubscribe := inst.Publisher.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		case current, ok := <-updates:
			if !ok || !current.IsAuthenticated {
				_ = ws.send(wsOutbound{Type: frameSession, Session: &session.Session{}})
				_ = ws.conn.Close()
				return
			}
		}
	}
}

func (s *Server) wsSend(ctx context.Context, inst *clientregistry.Instance, ws *wsConn, text string, attachments []attachment.Attachment) {
	s.metrics.RecordChatMessage(len(attachments))
	start := time.Now()

	_ = ws.send(wsOutbound{Type: framePending, Pending: true})
	user, reply, err := inst.Chat.Send(ctx, text, attachments)
	if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrReplyPending) {
		_ = ws.send(wsOutbound{Type: frameError, Error: err.Error()})
		return
	}
	if user.ID != "" {
		rendered := s.messageResponse(user)
		_ = ws.send(wsOutbound{Type: frameMessage, Message: &user, HTML: rendered.HTML})
	}
	s.metrics.RecordChatReply(time.Since(start), err)
	if err != nil {
		log.Err(err).Str("client", inst.ID).Msg("chat backend failed")
		_ = ws.send(wsOutbound{Type: frameError, Error: msgReplyFailed})
		return
	}
	rendered := s.messageResponse(reply)
	_ = ws.send(wsOutbound{Type: frameMessage, Message: &reply, HTML: rendered.HTML})
	_ = ws.send(wsOutbound{Type: framePending, Pending: false})
}

func decodeWSAttachments(in []wsAttachment, maxBytes int64) ([]attachment.Attachment, error) {
	out := make([]attachment.Attachment, 0, len(in))
	for _, wa := range in {
		data, err := base64.StdEncoding.DecodeString(wa.Data)
		if err != nil {
			return nil, errors.New("attachment " + wa.Name + " is not valid base64")
		}
		if maxBytes > 0 && int64(len(data)) > maxBytes {
			return nil, errors.New(wa.Name + " is " + attachment.FormatSize(int64(len(data))) + ": upload too large")
		}
		out = append(out, attachment.New(wa.Name, data, wa.Type))
	}
	return out, nil
}
