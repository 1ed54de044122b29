package reports

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	reBlankLines = regexp.MustCompile(`\n{3,}`)
	reSpaces     = regexp.MustCompile(`[ \t]+`)
)

func newConverter() *md.Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:    "atx",
		CodeBlockStyle:  "fenced",
		EmDelimiter:     "*",
		StrongDelimiter: "**",
	})
	// навигация и служебные блоки в отчёт не попадают
	conv.AddRules(md.Rule{
		Filter: []string{"nav", "footer", "aside", "script", "style", "form"},
		Replacement: func(_ string, _ *goquery.Selection, _ *md.Options) *string {
			return md.String("")
		},
	})
	return conv
}

// toMarkdown converts a page to markdown and returns it with the page title.
func toMarkdown(conv *md.Converter, html string) (title, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse html: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		title = strings.TrimSpace(og)
	}

	content := doc.Find("article").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	markdown = conv.Convert(content)
	markdown = reSpaces.ReplaceAllString(markdown, " ")
	markdown = reBlankLines.ReplaceAllString(markdown, "\n\n")
	return title, strings.TrimSpace(markdown), nil
}
