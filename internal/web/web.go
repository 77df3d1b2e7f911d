// Package web serves the browser viewer that draws carousel frames with WebGL.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var embeddedStatic embed.FS

// Handler serves the viewer page and its assets.
func Handler() http.Handler {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}
	return http.FileServer(http.FS(staticFS))
}
