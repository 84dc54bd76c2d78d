// Package web holds the server-rendered views and the static assets they load.
package web

import "embed"

//go:embed templates
var TemplateFiles embed.FS

// StaticFiles is served under /static/. The wasm bundle is built into
// static/wasm by `make wasm` and is optional at runtime.
//
//go:embed static
var StaticFiles embed.FS
