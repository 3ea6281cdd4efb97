// Package report renders a channel-value histogram as text, CSV or charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/svanichkin/hpdec/internal/fsutil"
	"github.com/svanichkin/hpdec/internal/transform"
)

// Files names the optional report destinations. Empty fields are skipped.
type Files struct {
	// Text receives the "Value <v>: <count> pixels" lines. A ".zst"
	// suffix compresses the file with zstd.
	Text string
	CSV  string
	PNG  string
	HTML string
}

// Empty reports whether no destination is set.
func (f Files) Empty() bool {
	return f == Files{}
}

// WriteText writes the 256 histogram lines to w.
func WriteText(w io.Writer, h *transform.Histogram) error {
	_, err := h.WriteTo(w)
	return err
}

// WriteCompressedText writes the histogram lines to w through a zstd
// encoder. The encoder is closed before returning so the frame is complete.
func WriteCompressedText(w io.Writer, h *transform.Histogram) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if _, err := h.WriteTo(enc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// WriteCSV writes a "value,count" table with a header row.
func WriteCSV(w io.Writer, h *transform.Histogram) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"value", "count"}); err != nil {
		return err
	}
	for v, c := range h {
		if err := cw.Write([]string{strconv.Itoa(v), strconv.FormatUint(c, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles renders h to every destination set in files. title labels
// the charts. Each file is closed before the next is opened.
func WriteFiles(fsys fsutil.FileSystem, files Files, h *transform.Histogram, title string) error {
	type job struct {
		path   string
		render func(io.Writer) error
	}
	jobs := []job{
		{files.Text, func(w io.Writer) error {
			if strings.EqualFold(filepath.Ext(files.Text), ".zst") {
				return WriteCompressedText(w, h)
			}
			return WriteText(w, h)
		}},
		{files.CSV, func(w io.Writer) error { return WriteCSV(w, h) }},
		{files.PNG, func(w io.Writer) error { return WritePNG(w, h, title) }},
		{files.HTML, func(w io.Writer) error { return WriteHTML(w, h, title) }},
	}

	for _, j := range jobs {
		if j.path == "" {
			continue
		}
		if err := writeFile(fsys, j.path, j.render); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fsys fsutil.FileSystem, path string, render func(io.Writer) error) (err error) {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if err := render(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
