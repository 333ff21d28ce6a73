package web

import "embed"

// FrontendFS holds the built SPA. The dist directory is replaced by the
// frontend build; the checked-in index.html is a placeholder for API-only builds.
//
//go:embed all:dist
var FrontendFS embed.FS
