package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"page-crawler/pkg/models"
)

// HTMLExtractor is the PageExtractor used by the crawler. It is stateless and
// safe for concurrent use.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract builds the record for one page. Broken markup is recovered by the
// HTML parser; missing elements leave their fields empty.
func (p *HTMLExtractor) Extract(rawHTML, pageURL string) models.PageRecord {
	record := models.PageRecord{URL: pageURL}

	doc := parseDocument(rawHTML)
	if doc == nil {
		return record
	}
	base := parseBase(pageURL)

	record.H1 = h1Text(doc)
	record.FirstParagraph = firstParagraphText(doc)
	record.OutgoingLinks = collectURLs(doc, "a", "href", base)
	record.ImageURLs = collectURLs(doc, "img", "src", base)
	return record
}

func ExtractH1(rawHTML string) string {
	if doc := parseDocument(rawHTML); doc != nil {
		return h1Text(doc)
	}
	return ""
}

func ExtractFirstParagraph(rawHTML string) string {
	if doc := parseDocument(rawHTML); doc != nil {
		return firstParagraphText(doc)
	}
	return ""
}

func ExtractLinks(rawHTML, pageURL string) []string {
	if doc := parseDocument(rawHTML); doc != nil {
		return collectURLs(doc, "a", "href", parseBase(pageURL))
	}
	return nil
}

func ExtractImages(rawHTML, pageURL string) []string {
	if doc := parseDocument(rawHTML); doc != nil {
		return collectURLs(doc, "img", "src", parseBase(pageURL))
	}
	return nil
}

func parseDocument(rawHTML string) *goquery.Document {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	return goquery.NewDocumentFromNode(root)
}

func parseBase(pageURL string) *url.URL {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	return base
}

func h1Text(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// A paragraph inside <main> wins over earlier ones elsewhere in the page.
func firstParagraphText(doc *goquery.Document) string {
	p := doc.Find("main p").First()
	if p.Length() == 0 {
		p = doc.Find("p").First()
	}
	return strings.TrimSpace(p.Text())
}

func collectURLs(doc *goquery.Document, tag, attr string, base *url.URL) []string {
	var out []string
	doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		value, ok := s.Attr(attr)
		if !ok {
			return
		}
		if resolved := resolveURL(base, value); resolved != "" {
			out = append(out, resolved)
		}
	})
	return out
}

// resolveURL joins href with base. Absolute references come back unchanged;
// empty or unparseable ones, and relative ones without a usable base, yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return href
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
