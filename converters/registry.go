package converters

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/darianmavgo/mkimport/converters/common"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]common.Driver)
)

// Register makes a dialect driver available by the provided name.
// If Register is called twice with the same name or if driver is nil, it panics.
func Register(name string, driver common.Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("converters: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("converters: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Lookup returns the driver registered under name.
func Lookup(name string) (common.Driver, error) {
	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", common.ErrUnknownDriver, name)
	}
	return driver, nil
}

// Open opens a sheet provider by driver name and source reader.
func Open(driverName string, source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	driver, err := Lookup(driverName)
	if err != nil {
		return nil, err
	}
	return driver.Open(source, config)
}

// Drivers returns a sorted list of the names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// DriverFor returns the name of the driver whose extension is the longest
// suffix of filename, so "book.ods.xml" selects the flat dialect over any
// "xml" claim. Compression suffixes must be stripped by the caller.
func DriverFor(filename string) (string, error) {
	base := strings.ToLower(filepath.Base(filename))
	best, bestLen := "", 0
	for _, name := range Drivers() {
		driver, err := Lookup(name)
		if err != nil {
			continue
		}
		for _, ext := range driver.Properties().Extensions {
			suffix := "." + strings.ToLower(ext)
			if len(suffix) > bestLen && strings.HasSuffix(base, suffix) {
				best, bestLen = name, len(suffix)
			}
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w for file type %q", common.ErrUnknownDriver, filepath.Ext(base))
	}
	return best, nil
}
