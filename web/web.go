package web

import "embed"

// Static holds the embedded login page and app shell.
// Handlers access it via fs.Sub(Static, "static").
//
//go:embed static
var Static embed.FS
