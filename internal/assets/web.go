package assets

import _ "embed"

// IndexHTML is the upload page served at the web root.
//
//go:embed web/index.html
var IndexHTML []byte
