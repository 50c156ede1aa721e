package templates

import (
	"embed"
	"html/template"
)

//go:embed html/*.html
var files embed.FS

// Load parses the embedded page templates. Handlers render them through
// gin's HTML renderer by file name.
func Load() *template.Template {
	return template.Must(template.ParseFS(files, "html/*.html"))
}
