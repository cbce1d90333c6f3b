package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-agent-chat/attachment"
)

const maxReplyBytes = 4 << 20

// HTTPBackend posts each message as JSON to a request/response AI service.
type HTTPBackend struct {
	url    string
	client *http.Client
}

func NewHTTPBackend(url string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPBackend{url: url, client: client}
}

type wireAttachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	Data string `json:"data"` // base64
}

type wireRequest struct {
	Text        string           `json:"text"`
	Attachments []wireAttachment `json:"attachments"`
}

type wireReply struct {
	Text        string           `json:"text"`
	Attachments []wireAttachment `json:"attachments"`
}

func (h *HTTPBackend) SendMessage(ctx context.Context, text string, attachments []attachment.Attachment) (Reply, error) {
	reqBody := wireRequest{Text: text, Attachments: make([]wireAttachment, 0, len(attachments))}
	for _, a := range attachments {
		reqBody.Attachments = append(reqBody.Attachments, wireAttachment{
			Name: a.Name,
			Size: a.Size,
			Type: a.MIMEType,
			Data: base64.StdEncoding.EncodeToString(a.Data),
		})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("chat backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("chat backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reply{}, fmt.Errorf("chat backend: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var wr wireReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&wr); err != nil {
		return Reply{}, fmt.Errorf("chat backend: decode reply: %w", err)
	}

	reply := Reply{Text: wr.Text}
	for _, wa := range wr.Attachments {
		data, err := base64.StdEncoding.DecodeString(wa.Data)
		if err != nil {
			return Reply{}, fmt.Errorf("chat backend: attachment %s: %w", wa.Name, err)
		}
		reply.Attachments = append(reply.Attachments, attachment.New(wa.Name, data, wa.Type))
	}
	return reply, nil
}
