package web

import "embed"

// Templates embeds the HTML templates used to materialize capture surfaces.
//
//go:embed templates/capture/*.html
var Templates embed.FS
