package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/gewebridge/internal/logging"
)

// fileServer hands out files below root and nothing else.
type fileServer struct {
	root    string
	workDir string
	log     *logging.Logger
}

func newFileServer(root string, log *logging.Logger) *fileServer {
	fs := &fileServer{root: root, log: log}
	if abs, err := filepath.Abs(root); err == nil {
		fs.root = abs
	}
	if wd, err := os.Getwd(); err == nil {
		fs.workDir = wd
	}
	return fs
}

// resolve turns the file parameter into an absolute, cleaned path.
// Relative values are taken against the working directory.
func (fs *fileServer) resolve(param string) string {
	p := filepath.FromSlash(param)
	if !filepath.IsAbs(p) {
		p = filepath.Join(fs.workDir, p)
	}
	return filepath.Clean(p)
}

// within reports whether path lies strictly inside root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (fs *fileServer) serve(w http.ResponseWriter, r *http.Request, param string) {
	path := fs.resolve(param)
	if !within(fs.root, path) {
		fs.log.Warn().Str("file", param).Str("resolved", path).Msg("refused file outside temp root")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// A symlink inside the root must not lead out of it.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		realRoot, rerr := filepath.EvalSymlinks(fs.root)
		if rerr != nil {
			realRoot = fs.root
		}
		if !within(realRoot, real) {
			fs.log.Warn().Str("file", param).Str("resolved", real).Msg("refused symlink out of temp root")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	f, err := os.Open(path)
	if err != nil {
		fs.log.Debug().Err(err).Str("file", path).Msg("file not found")
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
