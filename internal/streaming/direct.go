package streaming

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/reelhaven/mediaserver/internal/apierror"
)

// ValidatePathInLibrary canonicalizes filePath and checks it starts with
// the canonical form of one of the given library roots. A mismatch is a
// 403, distinguished from 404 (unknown resource).
func ValidatePathInLibrary(filePath string, libraryRoots []string) error {
	canon, err := filepath.EvalSymlinks(filePath)
	if err != nil {
		return apierror.NotFound("file not found on disk")
	}
	for _, root := range libraryRoots {
		canonRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			continue
		}
		if canon == canonRoot || strings.HasPrefix(canon, canonRoot+string(filepath.Separator)) {
			return nil
		}
	}
	return apierror.Forbidden("file is outside any authorized library root")
}

// ServeFileRange implements the direct-play byte-range response: 206 with
// a satisfied Range header, 200 for a full-body request, 416 if the
// requested range starts beyond the file size, 400 for a malformed Range
// header.
func ServeFileRange(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apierror.NotFound("file not found")
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return apierror.Internal("stat failed")
	}
	size := stat.Size()

	w.Header().Set("Content-Type", ContentTypeForPath(path))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = io.Copy(w, f)
		}
		return nil
	}

	br, err := ParseRangeHeader(rangeHeader, size)
	if err != nil {
		if unsatisfiable, ok := err.(*ErrUnsatisfiable); ok {
			w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(unsatisfiable.FileSize, 10))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return nil
		}
		return apierror.BadRequest(err.Error())
	}

	length := br.End - br.Start + 1
	w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(br.Start, 10)+"-"+strconv.FormatInt(br.End, 10)+"/"+strconv.FormatInt(size, 10))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
		return nil
	}
	_, _ = io.CopyN(w, f, length)
	return nil
}
