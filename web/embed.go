// Package web embeds the module assets served under /assets/.
package web

import "embed"

// Files holds module stylesheets and scripted module sources, rooted at
// modules/.
//
//go:embed modules/*/*.css modules/relatorios/relatorios.go
var Files embed.FS
