package domain

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// MarkdownFromHTML builds markdown item content from pasted rich text.
// Front ends hand us whatever the clipboard produced; the shelf stores
// markdown only.
func MarkdownFromHTML(html string) (MarkdownContent, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return MarkdownContent{}, fmt.Errorf("convert html to markdown: %w", err)
	}
	return MarkdownContent{Text: strings.TrimSpace(md)}, nil
}
