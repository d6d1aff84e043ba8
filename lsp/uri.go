package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FileURI converts a filesystem path to a file:// URI.
func FileURI(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	uriPath := filepath.ToSlash(abs)
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}
	u := &url.URL{
		Scheme: "file",
		Path:   uriPath,
	}
	return u.String()
}

// PathFromURI converts a file:// URI back to a filesystem path. Other URIs
// are returned unchanged.
func PathFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	path := u.Path
	if path == "" {
		return ""
	}
	// Windows drive letters arrive as /C:/...
	if strings.HasPrefix(path, "/") && len(path) >= 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}
