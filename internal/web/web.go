// Package web は画面のHTMLと静的ファイルをバイナリに埋め込んで提供する。
package web

import (
	"embed"
	"io/fs"
)

//go:embed views/*.html static
var assets embed.FS

// Views はHTMLページのファイルシステムを返す。
func Views() fs.FS {
	sub, err := fs.Sub(assets, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static は/js、/css配下で配信する静的ファイルのファイルシステムを返す。
func Static() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
