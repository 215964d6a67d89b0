package export

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding selects the byte encoding of output files. The default is plain
// UTF-8; the other two exist for spreadsheet interop (Excel sniffs a BOM,
// legacy tooling expects Windows-1252).
type Encoding int

const (
	UTF8 Encoding = iota
	UTF8BOM
	Windows1252
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// encodeWriter wraps w according to the encoding. The returned closer must
// be closed before the underlying file to flush any transform state.
func encodeWriter(w io.Writer, enc Encoding) (io.WriteCloser, error) {
	switch enc {
	case UTF8:
		return nopWriteCloser{w}, nil
	case UTF8BOM:
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("write BOM: %w", err)
		}
		return nopWriteCloser{w}, nil
	case Windows1252:
		return transform.NewWriter(w, charmap.Windows1252.NewEncoder()), nil
	default:
		return nil, fmt.Errorf("unknown encoding %d", enc)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
