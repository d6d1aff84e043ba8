// Package lang maps file names to language identifiers.
package lang

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// Language is the fixed set of languages a tab can carry.
type Language string

const (
	JavaScript Language = "javascript"
	Python     Language = "python"
	HTML       Language = "html"
	CSS        Language = "css"
	JSON       Language = "json"
)

// Plaintext is returned by Detect when nothing matches.
const Plaintext = "plaintext"

// Valid reports whether l is one of the tab languages.
func (l Language) Valid() bool {
	switch l {
	case JavaScript, Python, HTML, CSS, JSON:
		return true
	}
	return false
}

// DetectByExt derives a tab language from the last extension of name.
// Unknown extensions map to JavaScript.
func DetectByExt(name string) Language {
	switch ext(name) {
	case "py":
		return Python
	case "html", "htm":
		return HTML
	case "css":
		return CSS
	case "json":
		return JSON
	}
	return JavaScript
}

var extLanguages = map[string]string{
	"ts":         "typescript",
	"tsx":        "typescript",
	"js":         "javascript",
	"jsx":        "javascript",
	"mjs":        "javascript",
	"cjs":        "javascript",
	"rs":         "rust",
	"py":         "python",
	"pyw":        "python",
	"pyi":        "python",
	"html":       "html",
	"htm":        "html",
	"css":        "css",
	"scss":       "scss",
	"sass":       "sass",
	"less":       "less",
	"json":       "json",
	"jsonc":      "json",
	"yaml":       "yaml",
	"yml":        "yaml",
	"md":         "markdown",
	"markdown":   "markdown",
	"sh":         "shell",
	"bash":       "shell",
	"zsh":        "shell",
	"fish":       "shell",
	"ps1":        "powershell",
	"c":          "c",
	"h":          "c",
	"cpp":        "cpp",
	"cc":         "cpp",
	"cxx":        "cpp",
	"hpp":        "cpp",
	"java":       "java",
	"go":         "go",
	"php":        "php",
	"rb":         "ruby",
	"sql":        "sql",
	"xml":        "xml",
	"xsd":        "xml",
	"xsl":        "xml",
	"toml":       "toml",
	"ini":        "ini",
	"conf":       "ini",
	"config":     "ini",
	"properties": "properties",
	"lua":        "lua",
}

var fileLanguages = map[string]string{
	"dockerfile":  "dockerfile",
	"makefile":    "makefile",
	"gnumakefile": "makefile",
	"go.mod":      "go",
	"go.sum":      "go",
}

// Detect returns a broad language id for path, used for language servers
// and AI prompts. It falls back to chroma's lexer registry and finally to
// Plaintext.
func Detect(path string) string {
	base := filepath.Base(path)
	if id, ok := fileLanguages[strings.ToLower(base)]; ok {
		return id
	}
	if id, ok := extLanguages[ext(base)]; ok {
		return id
	}
	if lexer := lexers.Match(base); lexer != nil {
		if cfg := lexer.Config(); cfg != nil && cfg.Name != "" {
			return strings.ToLower(cfg.Name)
		}
	}
	return Plaintext
}

func ext(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}
