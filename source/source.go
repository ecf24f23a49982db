// Package source opens import files: it undoes transport compression and
// source charsets and hands out bounded chunks of the plain document.
package source

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Compression selects the decompressor of a source.
type Compression int

const (
	// CompressionNone reads the stream as is
	CompressionNone Compression = iota
	// CompressionAuto sniffs the magic number, then the file extension
	CompressionAuto
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD
)

// String returns the string representation of Compression
func (c Compression) String() string {
	switch c {
	case CompressionAuto:
		return "auto"
	case CompressionGZ:
		return "gz"
	case CompressionBZ2:
		return "bz2"
	case CompressionXZ:
		return "xz"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the file extension for the compression type
func (c Compression) Extension() string {
	switch c {
	case CompressionGZ:
		return ".gz"
	case CompressionBZ2:
		return ".bz2"
	case CompressionXZ:
		return ".xz"
	case CompressionZSTD:
		return ".zst"
	default:
		return ""
	}
}

// ParseCompression maps a configuration value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "auto":
		return CompressionAuto, nil
	case "gz", "gzip":
		return CompressionGZ, nil
	case "bz2", "bzip2":
		return CompressionBZ2, nil
	case "xz":
		return CompressionXZ, nil
	case "zst", "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", s)
	}
}

// Options configures a Handle.
type Options struct {
	Compression Compression
	// Charset is the IANA/WHATWG label of the source encoding; empty or
	// UTF-8 leaves bytes untouched.
	Charset string
}

var magic = []struct {
	sig  []byte
	comp Compression
}{
	{[]byte{0x1f, 0x8b}, CompressionGZ},
	{[]byte("BZh"), CompressionBZ2},
	{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, CompressionXZ},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, CompressionZSTD},
}

// DetectCompression picks a decompressor from the leading bytes of a stream,
// falling back to the extension of name.
func DetectCompression(head []byte, name string) Compression {
	for _, m := range magic {
		if bytes.HasPrefix(head, m.sig) {
			return m.comp
		}
	}
	return detectByExtension(name)
}

func detectByExtension(name string) Compression {
	name = strings.ToLower(name)
	for _, c := range []Compression{CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD} {
		if strings.HasSuffix(name, c.Extension()) {
			return c
		}
	}
	return CompressionNone
}

// StripCompressionExt removes a trailing compression extension, so that
// "book.ods.gz" selects the ods dialect.
func StripCompressionExt(name string) string {
	if c := detectByExtension(name); c != CompressionNone {
		return name[:len(name)-len(c.Extension())]
	}
	return name
}

// Handle is an open source stream.
type Handle struct {
	name       string
	r          io.Reader
	compressed bool
	closers    []func() error
	closed     bool
}

// Open opens the file at path.
func Open(path string, opts Options) (*Handle, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %v", common.ErrIO, err)
	}
	h, err := newHandle(f, filepath.Base(path), opts, f.Close)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return h, nil
}

// NewHandle wraps r. Closing the handle does not close r.
func NewHandle(r io.Reader, name string, opts Options) (*Handle, error) {
	return newHandle(r, name, opts, nil)
}

func newHandle(r io.Reader, name string, opts Options, closeFn func() error) (*Handle, error) {
	h := &Handle{name: name}
	if closeFn != nil {
		h.closers = append(h.closers, closeFn)
	}

	comp := opts.Compression
	if comp == CompressionAuto {
		br := bufio.NewReader(r)
		head, err := br.Peek(6)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: failed to read file header: %v", common.ErrIO, err)
		}
		comp = DetectCompression(head, name)
		r = br
	}

	reader, cleanup, err := decompressor(comp, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecompressionFailed, err)
	}
	h.compressed = comp != CompressionNone
	if cleanup != nil {
		h.closers = append(h.closers, cleanup)
	}

	if opts.Charset != "" {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, fmt.Errorf("%w: unsupported charset %q", common.ErrIO, opts.Charset)
		}
		if enc != unicode.UTF8 {
			reader = transform.NewReader(reader, enc.NewDecoder())
		}
	}

	h.r = reader
	return h, nil
}

func decompressor(comp Compression, r io.Reader) (io.Reader, func() error, error) {
	switch comp {
	case CompressionNone:
		return r, nil, nil

	case CompressionGZ:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		return bzip2.NewReader(r), nil, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, nil, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression type: %v", comp)
	}
}

// Name returns the base name the handle was opened with.
func (h *Handle) Name() string {
	return h.name
}

// Read implements io.Reader.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, fmt.Errorf("%w: read on closed source", common.ErrIO)
	}
	n, err := h.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		if h.compressed {
			return n, fmt.Errorf("%w: %v", common.ErrDecompressionFailed, err)
		}
		return n, fmt.Errorf("%w: %v", common.ErrIO, err)
	}
	return n, err
}

// ReadChunk returns up to maxBytes bytes. Fewer bytes are returned only at
// the end of the stream; once it is exhausted ReadChunk returns an empty
// slice and io.EOF.
func (h *Handle) ReadChunk(maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		return []byte{}, nil
	}
	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(h, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if n == 0 {
			return []byte{}, io.EOF
		}
		return buf[:n], nil
	default:
		return buf[:n], err
	}
}

// Close releases every layer exactly once.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
