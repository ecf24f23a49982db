package all

import (
	// Import all the dialects so they register themselves
	_ "github.com/darianmavgo/mkimport/converters/csv"
	_ "github.com/darianmavgo/mkimport/converters/excel"
	_ "github.com/darianmavgo/mkimport/converters/fods"
	_ "github.com/darianmavgo/mkimport/converters/html"
	_ "github.com/darianmavgo/mkimport/converters/markdown"
	_ "github.com/darianmavgo/mkimport/converters/ods"
)
