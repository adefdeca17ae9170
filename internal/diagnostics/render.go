package diagnostics

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
)

// keptAttrs are the attributes that help identify an element when reading
// a saved page after the fact.
var keptAttrs = map[string]bool{
	"id":     true,
	"class":  true,
	"name":   true,
	"type":   true,
	"value":  true,
	"href":   true,
	"src":    true,
	"alt":    true,
	"title":  true,
	"action": true,
}

// CleanHTML drops scripts, styles and other noise from a page source and
// strips every attribute that is not useful for selector debugging. Forms
// and buttons are kept since they are usually what went wrong.
func CleanHTML(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, canvas").Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		var attrs []html.Attribute
		for _, a := range node.Attr {
			if keptAttrs[a.Key] || strings.HasPrefix(a.Key, "data-") {
				attrs = append(attrs, a)
			}
		}
		node.Attr = attrs
	})

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Markdown renders a cleaned page as GitHub flavored Markdown with links
// resolved against base.
func Markdown(page, base string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, ok := selec.Attr("href")
			if !ok {
				return nil
			}
			link := href
			if base != "" {
				link = urlutil.ResolveURL(base, href)
			}
			str := fmt.Sprintf("[%s](%s)", strings.TrimSpace(selec.Text()), link)
			return &str
		},
	})

	cleaned, err := CleanHTML(page)
	if err != nil {
		return "", err
	}
	return converter.ConvertString(cleaned)
}
