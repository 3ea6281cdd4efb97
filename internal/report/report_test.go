package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/hpdec/internal/fsutil"
	"github.com/svanichkin/hpdec/internal/transform"
)

func testHistogram() *transform.Histogram {
	var h transform.Histogram
	h[0] = 3
	h[1] = 1
	h[2] = 1
	h[255] = 1
	return &h
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, testHistogram()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 256)
	assert.Equal(t, "Value 0: 3 pixels", lines[0])
	assert.Equal(t, "Value 128: 0 pixels", lines[128])
}

func TestWriteCompressedText_Decompresses(t *testing.T) {
	var plain, packed bytes.Buffer
	h := testHistogram()
	require.NoError(t, WriteText(&plain, h))
	require.NoError(t, WriteCompressedText(&packed, h))

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	out, err := dec.DecodeAll(packed.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, plain.String(), string(out))
	assert.Less(t, packed.Len(), plain.Len())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testHistogram()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 257)
	assert.Equal(t, []string{"value", "count"}, rows[0])
	assert.Equal(t, []string{"0", "3"}, rows[1])
	assert.Equal(t, []string{"255", "1"}, rows[256])
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, testHistogram(), "test"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), "expected PNG signature")
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, testHistogram(), "grid.hpdec"))

	page := buf.String()
	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "grid.hpdec")
}

func TestWriteFiles(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	files := Files{
		Text: "/hist.txt.zst",
		CSV:  "/hist.csv",
		PNG:  "/hist.png",
		HTML: "/hist.html",
	}
	require.False(t, files.Empty())
	require.True(t, Files{}.Empty())

	require.NoError(t, WriteFiles(mfs, files, testHistogram(), "grid"))
	for _, p := range []string{files.Text, files.CSV, files.PNG, files.HTML} {
		data, err := mfs.ReadFile(p)
		require.NoError(t, err, p)
		assert.NotEmpty(t, data, p)
	}
	assert.Equal(t, 0, mfs.OpenHandles())

	txt, _ := mfs.ReadFile(files.Text)
	assert.True(t, bytes.HasPrefix(txt, []byte{0x28, 0xb5, 0x2f, 0xfd}), "expected zstd frame magic")
}

func TestWriteFiles_PlainTextAndFailures(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, WriteFiles(mfs, Files{Text: "/hist.txt"}, testHistogram(), "grid"))
	txt, err := mfs.ReadFile("/hist.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(txt), "Value 0: 3 pixels\n"))

	mfs.FailCreate("/blocked.csv")
	err = WriteFiles(mfs, Files{CSV: "/blocked.csv"}, testHistogram(), "grid")
	assert.True(t, errors.Is(err, fsutil.ErrInjected))

	mfs.FailWriteAfter("/short.txt", 8)
	err = WriteFiles(mfs, Files{Text: "/short.txt"}, testHistogram(), "grid")
	assert.ErrorIs(t, err, fsutil.ErrInjected)
	assert.Equal(t, 0, mfs.OpenHandles())
}
