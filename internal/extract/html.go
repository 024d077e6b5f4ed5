// Package extract turns fetched or uploaded content into plain-text documents.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/dom"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/kailas-cloud/knowchain/internal/domain"
)

// HTML extracts the readable text of a page. The main article is preferred;
// pages readability cannot score fall back to the whole body text.
// A page without any text yields domain.ErrEmptyDocument.
func HTML(raw []byte, pageURL *url.URL) (domain.Document, error) {
	source := pageURL.String()

	var text string
	if article, err := readability.FromReader(bytes.NewReader(raw), pageURL); err == nil {
		text = article.TextContent
		if title := strings.TrimSpace(article.Title); title != "" && !strings.Contains(text, title) {
			text = title + "\n\n" + text
		}
	}
	text = normalizeSpace(text)

	if text == "" {
		body, err := bodyText(raw)
		if err != nil {
			return domain.Document{}, &domain.ExtractionError{Source: source, Err: err}
		}
		text = normalizeSpace(body)
	}

	if text == "" {
		return domain.Document{}, &domain.ExtractionError{Source: source, Err: domain.ErrEmptyDocument}
	}
	return domain.Document{Source: source, Text: text}, nil
}

func bodyText(raw []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	for _, tag := range []string{"script", "style", "noscript", "template"} {
		for _, n := range dom.GetElementsByTagName(doc, tag) {
			dom.DetachChild(n)
		}
	}
	if bodies := dom.GetElementsByTagName(doc, "body"); len(bodies) > 0 {
		return dom.TextContent(bodies[0]), nil
	}
	return dom.TextContent(doc), nil
}

// normalizeSpace trims every line and keeps at most one blank line between
// blocks, so paragraph breaks survive for the splitter.
func normalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
