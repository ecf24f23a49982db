package main

import (
	"path/filepath"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/source"
)

// driverName picks the dialect registered for the file name, ignoring a
// trailing compression extension.
func driverName(path string) (string, error) {
	return converters.DriverFor(source.StripCompressionExt(filepath.Base(path)))
}
