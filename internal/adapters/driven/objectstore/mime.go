package objectstore

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// fallbackTypes covers extensions the platform MIME table often lacks.
var fallbackTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".pdf":      "application/pdf",
	".csv":      "text/csv",
}

// DetectMIMEType guesses a MIME type from the file name, then from content.
func DetectMIMEType(name string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := fallbackTypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if mt, _, err := mime.ParseMediaType(t); err == nil {
				return mt
			}
			return t
		}
	}
	if len(content) > 0 {
		mt, _, err := mime.ParseMediaType(http.DetectContentType(content))
		if err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}
