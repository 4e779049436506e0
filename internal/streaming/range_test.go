package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFileSize = int64(1000)

func TestParseRangeHeader_Basic(t *testing.T) {
	br, err := ParseRangeHeader("bytes=0-499", testFileSize)
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 0, End: 499}, br)
}

func TestParseRangeHeader_OpenEnded(t *testing.T) {
	br, err := ParseRangeHeader("bytes=500-", testFileSize)
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 500, End: 999}, br)
}

func TestParseRangeHeader_Suffix(t *testing.T) {
	br, err := ParseRangeHeader("bytes=-200", testFileSize)
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 800, End: 999}, br)
}

func TestParseRangeHeader_SuffixLargerThanFile(t *testing.T) {
	br, err := ParseRangeHeader("bytes=-5000", testFileSize)
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 0, End: 999}, br)
}

func TestParseRangeHeader_EndClampedToFileSize(t *testing.T) {
	br, err := ParseRangeHeader("bytes=900-5000", testFileSize)
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Start: 900, End: 999}, br)
}

func TestParseRangeHeader_StartBeyondFileSizeIsUnsatisfiable(t *testing.T) {
	_, err := ParseRangeHeader("bytes=1000-1001", testFileSize)
	require.Error(t, err)
	var unsatisfiable *ErrUnsatisfiable
	require.ErrorAs(t, err, &unsatisfiable)
	assert.Equal(t, testFileSize, unsatisfiable.FileSize)
}

func TestParseRangeHeader_MultiRangeRejected(t *testing.T) {
	_, err := ParseRangeHeader("bytes=0-99,200-299", testFileSize)
	require.Error(t, err)
	var malformed *ErrMalformed
	require.ErrorAs(t, err, &malformed)
}

func TestParseRangeHeader_MissingPrefix(t *testing.T) {
	_, err := ParseRangeHeader("0-499", testFileSize)
	require.Error(t, err)
	var malformed *ErrMalformed
	require.ErrorAs(t, err, &malformed)
}

func TestParseRangeHeader_StartAfterEnd(t *testing.T) {
	_, err := ParseRangeHeader("bytes=500-100", testFileSize)
	require.Error(t, err)
	var malformed *ErrMalformed
	require.ErrorAs(t, err, &malformed)
}

func TestContentTypeForPath(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentTypeForPath("/media/movie.mp4"))
	assert.Equal(t, "video/x-matroska", ContentTypeForPath("/media/movie.mkv"))
	assert.Equal(t, "application/octet-stream", ContentTypeForPath("/media/movie.unknownext"))
}
