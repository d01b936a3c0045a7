package record

import (
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/goliatone/go-datatpl/pkg/errs"
)

// Decoding turns the bytes of a data file into UTF-8 text. UTF-8 input is
// validated, so bytes in another encoding fail instead of producing
// replacement characters.
type Decoding struct {
	label string
	newT  func() transform.Transformer
}

// ResolveDecoding maps an encoding label to a Decoding. Labels follow the
// WHATWG names (utf-16le, shift_jis, windows-1252, ...) plus utf-8-sig, which
// strips a leading byte order mark, and utf-16, which honours one.
func ResolveDecoding(label string) (Decoding, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), "_", "-")
	switch key {
	case "", "utf-8", "utf8":
		return Decoding{label: "utf-8", newT: func() transform.Transformer {
			return encoding.UTF8Validator
		}}, nil
	case "utf-8-sig", "utf8-sig":
		return Decoding{label: "utf-8-sig", newT: func() transform.Transformer {
			return transform.Chain(encoding.UTF8Validator, unicode.UTF8BOM.NewDecoder())
		}}, nil
	case "utf-16", "utf16":
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
		return Decoding{label: "utf-16", newT: func() transform.Transformer {
			return enc.NewDecoder()
		}}, nil
	}

	enc, err := htmlindex.Get(strings.ToLower(strings.TrimSpace(label)))
	if err != nil {
		enc, err = htmlindex.Get(key)
	}
	if err != nil {
		return Decoding{}, &errs.ConfigError{Setting: "encoding", Value: label}
	}
	if enc == unicode.UTF8 {
		return ResolveDecoding("utf-8")
	}
	return Decoding{label: key, newT: func() transform.Transformer {
		return enc.NewDecoder()
	}}, nil
}

// Label returns the normalised encoding label.
func (d Decoding) Label() string {
	if d.label == "" {
		return DefaultEncoding
	}
	return d.label
}

// Open opens path and returns a reader producing UTF-8 text. The caller owns
// the returned ReadCloser.
func (d Decoding) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.FileAccessError{Op: "open", Path: path, Err: err}
	}
	newT := d.newT
	if newT == nil {
		newT = func() transform.Transformer { return encoding.UTF8Validator }
	}
	return &decodedFile{Reader: transform.NewReader(f, newT()), file: f}, nil
}

type decodedFile struct {
	io.Reader
	file *os.File
}

func (f *decodedFile) Close() error {
	return f.file.Close()
}

// readError classifies a failure raised while consuming a data file.
func readError(path string, err error) error {
	var access *errs.FileAccessError
	if errors.As(err, &access) {
		return err
	}
	if errors.Is(err, encoding.ErrInvalidUTF8) {
		return &errs.FileAccessError{Op: "decode", Path: path, Err: err}
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &errs.FileAccessError{Op: "parse", Path: path, Err: err}
}
