package web

import (
	"embed"
)

// staticFiles holds the control page: index.html, app.js and style.css.
// The dials themselves are served as SVG by /api/dial/{axis}.svg.
//
//go:embed static/*
var staticFiles embed.FS
