// gzip_wrap.go - VGZ/FM9 gzip framing on top of klauspost/compress, which
// the teacher's go.mod already carries transitively; using it directly
// here keeps the classic 10-byte gzip header/trailer layout without
// reaching for the standard library where an ecosystem drop-in exists.
package opl9

import (
	"bufio"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

const maxDecompressedSize = 64 * 1024 * 1024

// GzipWrap compresses data into a single-member gzip stream.
func GzipWrap(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, wrapErr(ErrCompress, "gzip: write failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, wrapErr(ErrCompress, "gzip: close failed", err)
	}
	return buf.Bytes(), nil
}

// GzipUnwrap decompresses a gzip stream, rejecting output over the 64 MiB
// safety cap rather than trusting an attacker-controlled size hint. Only
// the leading member is decompressed: callers may pass a buffer with
// non-gzip bytes trailing the member (as an FM9 file does), and those
// bytes must not be mistaken for a second member.
func GzipUnwrap(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, wrapErr(ErrDecompress, "gzip: bad header", err)
	}
	defer r.Close()
	r.Multistream(false)

	limited := io.LimitReader(r, maxDecompressedSize+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, wrapErr(ErrDecompress, "gzip: stream corrupt", err)
	}
	if len(out) > maxDecompressedSize {
		return nil, newErr(ErrDecompress, "gzip: decompressed size exceeds 64MiB cap")
	}
	return out, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// gzipStreamLength returns how many bytes of data the leading gzip member
// occupies, so a caller can locate raw bytes appended after it (as FM9
// does for its audio/image tail). The gzip reader pulls bytes through a
// small bufio.Reader (bufio raises the requested size of 1 to its 16-byte
// minimum), which as an io.ByteReader lets deflate consume exactly the
// member's bytes; whatever bufio read ahead past the member is still
// buffered, so the byte total countingReader saw minus br.Buffered() is
// the member length.
func gzipStreamLength(data []byte) (int, error) {
	cr := &countingReader{r: bytes.NewReader(data)}
	br := bufio.NewReaderSize(cr, 1)
	gz, err := gzip.NewReader(br)
	if err != nil {
		return 0, wrapErr(ErrDecompress, "fm9: bad gzip header", err)
	}
	defer gz.Close()
	// Without this, the reader treats whatever follows the first member
	// (FM9's raw audio/image tail) as the start of a second gzip member
	// and errors trying to parse it as a header.
	gz.Multistream(false)
	if _, err := io.Copy(io.Discard, io.LimitReader(gz, maxDecompressedSize+1)); err != nil {
		return 0, wrapErr(ErrDecompress, "fm9: gzip stream corrupt", err)
	}
	return int(cr.n) - br.Buffered(), nil
}
