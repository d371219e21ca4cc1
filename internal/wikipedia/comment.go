package wikipedia

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wikiwatch/internal/watch"
)

// AbsoluteLinks rewrites every <a href="/wiki/..."> in an HTML comment to
// point at the region's host. Other links are left alone.
func AbsoluteLinks(comment string, region watch.Region) (string, error) {
	if !strings.Contains(comment, "/wiki/") {
		return comment, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(comment))
	if err != nil {
		return "", fmt.Errorf("parse comment: %w", err)
	}

	prefix := "https://" + region.Host()
	doc.Find(`a[href^="/wiki/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		a.SetAttr("href", prefix+href)
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render comment: %w", err)
	}
	return out, nil
}

// PlainText strips the markup from an HTML comment for terminal display.
func PlainText(comment string) string {
	if !strings.ContainsAny(comment, "<&") {
		return strings.TrimSpace(comment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(comment))
	if err != nil {
		return comment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
