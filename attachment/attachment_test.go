package attachment_test

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-agent-chat/attachment"
	internalErrors "github.com/jrsteele09/go-agent-chat/internal/errors"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1234567, "1.18 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3072 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, attachment.FormatSize(tt.bytes))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("image gets preview", func(t *testing.T) {
		a := attachment.New("pixel.png", pngPixel, "")
		require.Equal(t, "image/png", a.MIMEType)
		require.True(t, a.IsImage())
		require.True(t, strings.HasPrefix(string(a.Preview), "data:image/png;base64,"))
		require.Equal(t, int64(len(pngPixel)), a.Size)
		require.NotEmpty(t, a.ID)
	})

	t.Run("declared type kept", func(t *testing.T) {
		a := attachment.New("notes.txt", []byte("hello"), "text/plain; charset=utf-8")
		require.Equal(t, "text/plain", a.MIMEType)
		require.Empty(t, a.Preview)
	})

	t.Run("generic type sniffed", func(t *testing.T) {
		a := attachment.New("doc.pdf", []byte("%PDF-1.4\n..."), "application/octet-stream")
		require.Equal(t, "application/pdf", a.MIMEType)
		require.False(t, a.IsImage())
	})
}

func multipartFile(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["files"][0]
}

func TestFromMultipart(t *testing.T) {
	fh := multipartFile(t, "pixel.png", pngPixel)

	a, err := attachment.FromMultipart(fh, 1024)
	require.NoError(t, err)
	require.Equal(t, "pixel.png", a.Name)
	require.Equal(t, "image/png", a.MIMEType)
	require.Equal(t, pngPixel, a.Data)

	_, err = attachment.FromMultipart(fh, 10)
	require.ErrorIs(t, err, internalErrors.ErrUploadTooLarge)
}

func TestTray(t *testing.T) {
	var tray attachment.Tray
	a := attachment.New("a.txt", []byte("a"), "text/plain")
	b := attachment.New("b.txt", []byte("b"), "text/plain")
	tray.Add(a)
	tray.Add(b)

	require.NoError(t, tray.Remove(a.ID))
	require.ErrorIs(t, tray.Remove(a.ID), internalErrors.ErrNotFound)
	require.Len(t, tray.List(), 1)

	taken := tray.Take()
	require.Len(t, taken, 1)
	require.Equal(t, b.ID, taken[0].ID)
	require.Empty(t, tray.List())

	tray.Add(a)
	tray.Clear()
	require.Empty(t, tray.List())
}
