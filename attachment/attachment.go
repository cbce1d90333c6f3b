// Package attachment holds files a user attaches to a chat message. Only
// metadata and an optional image preview are derived; nothing is stored.
package attachment

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"math"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
)

// DefaultMaxPreviewBytes caps the size of images inlined as previews.
const DefaultMaxPreviewBytes = 2 << 20

type Attachment struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Size     int64        `json:"size"`
	MIMEType string       `json:"type"`
	Data     []byte       `json:"-"`
	Preview  template.URL `json:"preview,omitempty"` // data URI, images only
}

// New builds an Attachment. The declared type is trusted unless it is empty
// or generic, in which case the content is sniffed.
func New(name string, data []byte, declaredType string) Attachment {
	mimeType := strings.TrimSpace(declaredType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	a := Attachment{
		ID:       uuid.New().String(),
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: mimeType,
		Data:     data,
	}
	if a.IsImage() && len(data) <= DefaultMaxPreviewBytes {
		a.Preview = template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data))
	}
	return a
}

// FromMultipart reads an uploaded file, rejecting anything over maxBytes.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (Attachment, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return Attachment{}, internalErrors.Wrapf(internalErrors.ErrUploadTooLarge, "%s is %s", fh.Filename, FormatSize(fh.Size))
	}
	f, err := fh.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	reader := io.Reader(f)
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Attachment{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Attachment{}, internalErrors.Wrapf(internalErrors.ErrUploadTooLarge, "%s", fh.Filename)
	}
	return New(fh.Filename, data, fh.Header.Get("Content-Type")), nil
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// HumanSize is FormatSize(a.Size).
func (a Attachment) HumanSize() string {
	return FormatSize(a.Size)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count in 1024 steps with at most two decimals:
// 0 -> "0 Bytes", 1536 -> "1.5 KB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
