package hpdec

import (
	"bufio"
	"errors"
	"io"
	"strconv"
)

// errNoToken marks a stream that ended before the expected token.
var errNoToken = errors.New("unexpected end of input")

// tokenReader yields whitespace-separated tokens; line breaks carry no
// meaning in the format.
type tokenReader struct {
	sc *bufio.Scanner
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc}
}

// next returns the next token. A stream that ends cleanly yields
// errNoToken; a token longer than the scanner buffer yields
// bufio.ErrTooLong; any other failure is an *IOError.
func (t *tokenReader) next() (string, error) {
	if t.sc.Scan() {
		return t.sc.Text(), nil
	}
	err := t.sc.Err()
	switch {
	case err == nil:
		return "", errNoToken
	case errors.Is(err, bufio.ErrTooLong):
		return "", err
	default:
		return "", &IOError{Op: "read", Err: err}
	}
}

// int reads a decimal integer token with an optional sign.
func (t *tokenReader) int() (int, error) {
	tok, err := t.next()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}

// asFormat turns a token error into a FormatError for cause, passing
// *IOError through untouched.
func asFormat(cause string, err error) error {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr
	}
	return formatErr(cause, err)
}

// writeHeader writes the magic token and the dimensions line.
func writeHeader(w *bufio.Writer, height, width int) error {
	if _, err := w.WriteString(Magic + "\n"); err != nil {
		return err
	}
	line := strconv.AppendInt(nil, int64(height), 10)
	line = append(line, ' ')
	line = strconv.AppendInt(line, int64(width), 10)
	line = append(line, '\n')
	_, err := w.Write(line)
	return err
}

// readHeader checks the magic token and reads positive height and width.
func readHeader(t *tokenReader) (height, width int, err error) {
	magic, err := t.next()
	if err != nil {
		return 0, 0, asFormat(CauseFormat, err)
	}
	if magic != Magic {
		return 0, 0, formatErr(CauseFormat, nil)
	}

	if height, err = t.int(); err != nil {
		return 0, 0, asFormat(CauseDimensions, err)
	}
	if width, err = t.int(); err != nil {
		return 0, 0, asFormat(CauseDimensions, err)
	}
	if height <= 0 || width <= 0 {
		return 0, 0, formatErr(CauseDimensions, nil)
	}
	return height, width, nil
}
