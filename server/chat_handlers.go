package server

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-agent-chat/attachment"
	"github.com/jrsteele09/go-agent-chat/chat"
	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
	"github.com/jrsteele09/go-agent-chat/server/clientregistry"
	"github.com/rs/zerolog/log"
)

const (
	msgReplyFailed  = "Sorry, I could not get a response. Please try again."
	multipartSlack  = 1 << 20
	maxFilesPerPost = 20
)

// MessageResponse is the JSON form of a chat message.
type MessageResponse struct {
	chat.Message
	HTML string `json:"html"` // rendered message partial
}

// ChatPageHandler renders the conversation (GET /chat)
func (s *Server) ChatPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderChat(w, http.StatusOK, instanceFromContext(r.Context()), "")
	}
}

// ChatMessageHandler sends one message with the tray's attachments plus any
// uploaded with it (POST /chat/messages)
func (s *Server) ChatMessageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())

		text, uploaded, err := s.readUpload(w, r, "message")
		if err != nil {
			s.chatError(w, r, inst, uploadStatus(err), err.Error())
			return
		}

		attachments := append(inst.Chat.Tray.Take(), uploaded...)
		s.metrics.RecordChatMessage(len(attachments))

		start := time.Now()
		user, reply, err := inst.Chat.Send(r.Context(), text, attachments)
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			s.chatError(w, r, inst, http.StatusBadRequest, "Please enter a message or attach a file")
			return
		case errors.Is(err, chat.ErrReplyPending):
			for _, a := range attachments {
				inst.Chat.Tray.Add(a)
			}
			s.chatError(w, r, inst, http.StatusConflict, "Please wait for the current reply")
			return
		case err != nil:
			s.metrics.RecordChatReply(time.Since(start), err)
			log.Err(err).Str("client", inst.ID).Msg("chat backend failed")
			s.chatError(w, r, inst, http.StatusBadGateway, msgReplyFailed)
			return
		}
		s.metrics.RecordChatReply(time.Since(start), nil)

		switch {
		case wantsJSON(r):
			writeJSON(w, r, http.StatusOK, map[string]MessageResponse{
				"message": s.messageResponse(user),
				"reply":   s.messageResponse(reply),
			})
		case isHTMXRequest(r):
			var buf bytes.Buffer
			for _, m := range []chat.Message{user, reply} {
				if err := s.templates.ExecuteTemplate(&buf, "message", m); err != nil {
					log.Err(err).Msg("Failed to render message")
				}
			}
			w.Header().Set("Content-Type", contentTypeHTML)
			_, _ = buf.WriteTo(w)
		default:
			redirectSuccess(w, r, RouteChat)
		}
	}
}

// NewChatHandler resets the conversation (POST /chat/new)
func (s *Server) NewChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		inst.Chat.NewChat()
		if wantsJSON(r) {
			writeJSON(w, r, http.StatusOK, map[string]any{"chatId": inst.Chat.ID(), "messages": s.messageResponses(inst.Chat.Messages())})
			return
		}
		redirectSuccess(w, r, RouteChat)
	}
}

// AttachmentUploadHandler adds files to the tray for the next message
// (POST /chat/attachments)
func (s *Server) AttachmentUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		_, uploaded, err := s.readUpload(w, r, "")
		if err != nil {
			s.chatError(w, r, inst, uploadStatus(err), err.Error())
			return
		}
		for _, a := range uploaded {
			inst.Chat.Tray.Add(a)
		}
		s.respondTray(w, r, inst)
	}
}

// AttachmentRemoveHandler drops a file from the tray
// (POST /chat/attachments/{id}/remove)
func (s *Server) AttachmentRemoveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		if err := inst.Chat.Tray.Remove(r.PathValue("id")); err != nil {
			s.chatError(w, r, inst, http.StatusNotFound, "Attachment not found")
			return
		}
		s.respondTray(w, r, inst)
	}
}

func (s *Server) respondTray(w http.ResponseWriter, r *http.Request, inst *clientregistry.Instance) {
	switch {
	case wantsJSON(r):
		writeJSON(w, r, http.StatusOK, map[string]any{"attachments": inst.Chat.Tray.List()})
	case isHTMXRequest(r):
		s.renderTemplate(w, http.StatusOK, "tray", inst.Chat.Tray.List())
	default:
		redirectSuccess(w, r, RouteChat)
	}
}

// readUpload parses a multipart body bounded by the upload limit and turns
// its files into attachments.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, textField string) (string, []attachment.Attachment, error) {
	maxBytes := s.config.GetChatMaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*maxFilesPerPost+multipartSlack)
	if err := r.ParseMultipartForm(maxBytes + multipartSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, internalErrors.Wrapf(internalErrors.ErrUploadTooLarge, "request")
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return "", nil, internalErrors.Wrapf(internalErrors.ErrInvalidRequest, "%v", err)
		}
		// url-encoded text-only submission
		if err := r.ParseForm(); err != nil {
			return "", nil, internalErrors.Wrapf(internalErrors.ErrInvalidRequest, "%v", err)
		}
	}

	var text string
	if textField != "" {
		text = r.FormValue(textField)
	}
	if r.MultipartForm == nil {
		return text, nil, nil
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) > maxFilesPerPost {
		return "", nil, internalErrors.Wrapf(internalErrors.ErrInvalidRequest, "at most %d files per message", maxFilesPerPost)
	}
	attachments := make([]attachment.Attachment, 0, len(headers))
	for _, fh := range headers {
		a, err := attachment.FromMultipart(fh, maxBytes)
		if err != nil {
			return "", nil, err
		}
		attachments = append(attachments, a)
	}
	return text, attachments, nil
}

func uploadStatus(err error) int {
	if errors.Is(err, internalErrors.ErrUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *Server) chatError(w http.ResponseWriter, r *http.Request, inst *clientregistry.Instance, status int, message string) {
	if wantsJSON(r) {
		writeJSONError(w, r, status, message)
		return
	}
	s.renderChat(w, status, inst, message)
}

func (s *Server) renderChat(w http.ResponseWriter, status int, inst *clientregistry.Instance, errMsg string) {
	data := s.newPageData()
	data.Session = inst.Publisher.Current()
	data.ChatID = inst.Chat.ID()
	data.Messages = inst.Chat.Messages()
	data.Tray = inst.Chat.Tray.List()
	data.Error = errMsg
	s.renderTemplate(w, status, "chat.html", data)
}

func (s *Server) messageResponse(m chat.Message) MessageResponse {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "message", m); err != nil {
		log.Err(err).Msg("Failed to render message")
	}
	return MessageResponse{Message: m, HTML: buf.String()}
}

func (s *Server) messageResponses(msgs []chat.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.messageResponse(m))
	}
	return out
}
