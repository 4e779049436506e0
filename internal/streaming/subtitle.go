package streaming

import (
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/reelhaven/mediaserver/internal/apierror"
)

var subtitleContentTypeByExt = map[string]string{
	".srt": "application/x-subrip",
	".vtt": "text/vtt",
	".ass": "text/x-ssa",
	".ssa": "text/x-ssa",
	".sup": "application/octet-stream",
	".idx": "text/plain",
	".sub": "text/plain",
}

// DecodeSubtitleHexPath decodes the lowercase-hex-encoded UTF-8 filesystem
// path used by the subtitle route.
func DecodeSubtitleHexPath(hexPath string) (string, error) {
	raw, err := hex.DecodeString(hexPath)
	if err != nil {
		return "", apierror.BadRequest("invalid hex path")
	}
	return string(raw), nil
}

// ServeSubtitle validates the decoded path is inside an authorized library
// root, then serves it with the extension-derived MIME type.
func ServeSubtitle(w http.ResponseWriter, r *http.Request, path string, libraryRoots []string) error {
	if err := ValidatePathInLibrary(path, libraryRoots); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return apierror.NotFound("subtitle not found")
	}
	defer f.Close()

	w.Header().Set("Content-Type", subtitleContentType(path))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, f)
	}
	return nil
}

func subtitleContentType(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return "application/octet-stream"
	}
	if ct, ok := subtitleContentTypeByExt[strings.ToLower(path[idx:])]; ok {
		return ct
	}
	return "application/octet-stream"
}
