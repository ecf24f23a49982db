package common

import (
	"context"
	"io"
)

// Driver defines the interface that must be implemented by a dialect package.
type Driver interface {
	// Open returns a new SheetProvider for the given input.
	Open(source io.Reader, config *ConversionConfig) (SheetProvider, error)

	// Properties describes the dialect.
	Properties() Properties
}

// Properties describe a dialect to users and to file-name based selection.
type Properties struct {
	Description string   // human readable format name
	Extensions  []string // lower-case, without the leading dot; compound suffixes such as "ods.xml" are allowed
}

// SheetProvider yields the logical sheets of one parsed document. Providers
// holding resources also implement io.Closer.
type SheetProvider interface {
	// DatabaseName is the synthetic database name used when the caller
	// names no target database.
	DatabaseName() string

	// ScanSheets calls yield for every non-empty sheet in document order.
	// If yield returns an error, iteration stops and that error is returned.
	// Cancellation is checked between sheets.
	ScanSheets(ctx context.Context, yield func(*Sheet) error) error
}

// ChunkReader is the byte-stream contract of the Source Reader: ReadChunk
// returns at most maxBytes bytes, possibly fewer, and an empty slice with
// io.EOF once the stream is exhausted.
type ChunkReader interface {
	ReadChunk(maxBytes int) ([]byte, error)
}

// Sink executes statements in submission order.
type Sink interface {
	Exec(ctx context.Context, statement string) error
}
