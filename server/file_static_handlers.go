package server

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

//go:embed static/*
var staticFiles embed.FS

var staticFS = sync.OnceValue(func() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}
	return subFS
})

// StaticFilesFS is the embedded css and js tree.
func StaticFilesFS() fs.FS {
	return staticFS()
}

// StreamFile writes an embedded asset, typed by extension and sniffed when
// the extension is unknown.
func StreamFile(w http.ResponseWriter, _ *http.Request, fileName string) error {
	data, err := fs.ReadFile(StaticFilesFS(), fileName)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", fileName)
	}

	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))
	if ctype == "" {
		ctype = mimetype.Detect(data).String()
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "failed to write %s", fileName)
	}
	return nil
}
