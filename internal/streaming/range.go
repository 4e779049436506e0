// Package streaming implements RFC 7233 HTTP range parsing, library-root
// path authorization, and byte-range serving of direct-play media files.
package streaming

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is an inclusive [Start, End] byte range, both 0-indexed.
type ByteRange struct {
	Start int64
	End   int64
}

// ErrUnsatisfiable signals a 416: start is at or past the file size.
type ErrUnsatisfiable struct{ FileSize int64 }

func (e *ErrUnsatisfiable) Error() string {
	return fmt.Sprintf("range not satisfiable for file size %d", e.FileSize)
}

// ErrMalformed signals a 400: the header is syntactically invalid, a
// multi-range request, or start > end after clamping.
type ErrMalformed struct{ Reason string }

func (e *ErrMalformed) Error() string { return "malformed range: " + e.Reason }

// ParseRangeHeader parses a single-range `Range: bytes=...` header value
// against a known file size. Only one range is accepted; comma-separated
// multi-range requests are rejected with ErrMalformed.
func ParseRangeHeader(header string, fileSize int64) (ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return ByteRange{}, &ErrMalformed{Reason: "missing bytes= prefix"}
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return ByteRange{}, &ErrMalformed{Reason: "multi-range requests are not supported"}
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return ByteRange{}, &ErrMalformed{Reason: "missing '-' separator"}
	}
	startStr, endStr := parts[0], parts[1]

	var start, end int64

	if startStr == "" {
		// Suffix range: bytes=-n means the last n bytes.
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix < 0 {
			return ByteRange{}, &ErrMalformed{Reason: "invalid suffix length"}
		}
		start = fileSize - suffix
		if start < 0 {
			start = 0
		}
		end = fileSize - 1
	} else {
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || s < 0 {
			return ByteRange{}, &ErrMalformed{Reason: "invalid start"}
		}
		start = s

		if endStr == "" {
			end = fileSize - 1
		} else {
			e, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || e < 0 {
				return ByteRange{}, &ErrMalformed{Reason: "invalid end"}
			}
			end = e
		}
	}

	if start >= fileSize {
		return ByteRange{}, &ErrUnsatisfiable{FileSize: fileSize}
	}
	if end > fileSize-1 {
		end = fileSize - 1
	}
	if start > end {
		return ByteRange{}, &ErrMalformed{Reason: "start beyond end"}
	}

	return ByteRange{Start: start, End: end}, nil
}

var contentTypeByExt = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".mts":  "video/mp2t",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".ogv":  "video/ogg",
	".wmv":  "video/x-ms-wmv",
	".asf":  "video/x-ms-asf",
	".flv":  "video/x-flv",
	".f4v":  "video/x-f4v",
	".3gp":  "video/3gpp",
	".3g2":  "video/3gpp2",
	".mxf":  "application/mxf",
}

// ContentTypeForPath maps a file extension to its canonical MIME type,
// falling back to application/octet-stream for anything not in the table.
func ContentTypeForPath(path string) string {
	ext := extOf(path)
	if ct, ok := contentTypeByExt[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}
