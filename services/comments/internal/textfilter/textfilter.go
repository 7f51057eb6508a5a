// Package textfilter cleans comment text before it is stored and renders it
// to safe HTML for display.
package textfilter

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/unicode/norm"
)

type Filter struct {
	strip *bluemonday.Policy
	ugc   *bluemonday.Policy
	md    goldmark.Markdown
}

func New() *Filter {
	ugc := bluemonday.UGCPolicy()
	ugc.AddTargetBlankToFullyQualifiedLinks(true)
	ugc.RequireNoReferrerOnLinks(true)

	return &Filter{
		strip: bluemonday.StrictPolicy(),
		ugc:   ugc,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(htmlrenderer.WithHardWraps()),
		),
	}
}

// maxDecodePasses bounds how many layers of entity encoding are unwrapped.
const maxDecodePasses = 8

// Sanitize removes every HTML element (script and style bodies included),
// normalizes to NFC and trims surrounding space. The result is plain text.
//
// Entities are decoded after stripping, and decoding can produce new tags,
// so strip and decode repeat until the text stops changing. Input still
// changing after maxDecodePasses is returned in escaped form.
func (f *Filter) Sanitize(raw string) string {
	s := norm.NFC.String(raw)
	for range maxDecodePasses {
		next := html.UnescapeString(f.strip.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(f.strip.Sanitize(s))
}

// Render turns stored markdown into HTML safe to embed.
func (f *Filter) Render(text string) string {
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}
	return strings.TrimSpace(f.ugc.Sanitize(buf.String()))
}
