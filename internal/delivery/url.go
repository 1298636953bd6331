package delivery

import (
	"net/url"
	"path/filepath"
	"strings"
)

// MediaURL builds the address the provider fetches a staged file from:
// <callbackURL>?file=<path>. The path is relative to workDir when the file
// lies below it and absolute otherwise. The file server resolves it against
// the same directory and enforces containment itself.
func MediaURL(callbackURL, workDir, path string) string {
	p := path
	if abs, err := filepath.Abs(path); err == nil {
		p = abs
		if rel, err := filepath.Rel(workDir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			p = rel
		}
	}
	return callbackURL + "?file=" + url.QueryEscape(filepath.ToSlash(p))
}
