package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/go-agent-chat/attachment"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/session"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"formatSize": attachment.FormatSize,
	"isUser":     func(m chat.Message) bool { return m.Sender == chat.SenderUser },
	"timeOf":     func(m chat.Message) string { return m.Timestamp.Format("15:04") },
}

// ParseTemplates parses every page and partial from the embedded filesystem
func ParseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(TemplateFilesFS(), "*.html")
}

// PageData is the model shared by the server rendered pages
type PageData struct {
	AppName    string
	Tab        string // login, signup or sso
	Error      string
	Info       string
	Email      string
	Name       string
	SSOEnabled bool

	Session        session.Session
	ChatID         string
	Messages       []chat.Message
	Tray           []attachment.Attachment
	MaxUploadBytes int64
}

func (s *Server) newPageData() PageData {
	return PageData{
		AppName:        s.config.GetAppName(),
		Tab:            "login",
		SSOEnabled:     s.config.GetVerifiedDomains().Enabled(),
		MaxUploadBytes: s.config.GetChatMaxUploadBytes(),
	}
}

// renderTemplate executes name into a buffer first so a template error
// never leaves a half written page.
func (s *Server) renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
