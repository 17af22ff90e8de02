// Package dialect implements the site-specific and generic document
// discovery strategies the orchestrator drives per source.
package dialect

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/northbound-policy/ingest/internal/model"
	"github.com/northbound-policy/ingest/internal/sources"
)

// Link is one discovered document candidate.
type Link struct {
	URL      string
	Title    string
	FileType string
}

// Scraper is the polymorphic contract every dialect implements.
type Scraper interface {
	DiscoverLinks(pageHTML, pageURL string) ([]Link, error)
	NextPage(pageHTML, pageURL string) (string, bool)
}

// For resolves the Scraper for a source's configured dialect.
func For(d model.Dialect, keywords []string) Scraper {
	switch d {
	case model.DialectMoE:
		return moeScraper{}
	case model.DialectUGC:
		return ugcScraper{}
	case model.DialectAICTE:
		return aicteScraper{}
	default:
		return genericScraper{keywords: keywords}
	}
}

var docExtension = regexp.MustCompile(`(?i)\.(pdf|docx?|pptx?|xlsx?|png|jpe?g|tiff?|html?)$`)

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}

func titleOrFallback(anchorText, link string) string {
	t := strings.TrimSpace(anchorText)
	if t != "" {
		return t
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return path.Base(u.Path)
}

func fileTypeOf(link string) string {
	m := docExtension.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

// SanitizeFilename replaces characters illegal on common filesystems with
// `-` or `_`, truncates to 100 characters, and appends a timestamp plus
// extension.
func SanitizeFilename(title, ext string, now time.Time) string {
	replacer := strings.NewReplacer(
		":", "-", `"`, "-", "/", "_", `\`, "_", "?", "-", "*", "-",
	)
	clean := replacer.Replace(strings.TrimSpace(title))
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 100 {
		clean = clean[:100]
	}
	if clean == "" {
		clean = "document"
	}
	return fmt.Sprintf("%s_%d.%s", clean, now.Unix(), strings.TrimPrefix(ext, "."))
}

// moeScraper handles the Ministry of Education document-listing DOM:
// rows of <a> tags inside a table body, tolerant of missing title cells.
type moeScraper struct{}

func (moeScraper) DiscoverLinks(pageHTML, pageURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	var links []Link
	doc.Find("table tbody tr a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := resolve(pageURL, href)
		if fileTypeOf(abs) == "" {
			return
		}
		links = append(links, Link{
			URL:      abs,
			Title:    titleOrFallback(sel.Text(), abs),
			FileType: fileTypeOf(abs),
		})
	})
	return links, nil
}

func (moeScraper) NextPage(pageHTML, pageURL string) (string, bool) {
	return findNextLink(pageHTML, pageURL, "a.next, a[rel=next]")
}

// ugcScraper handles the UGC public-notices listing DOM: document links
// inside article/content divs.
type ugcScraper struct{}

func (ugcScraper) DiscoverLinks(pageHTML, pageURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	var links []Link
	doc.Find(".content-area a[href], article a[href], .view-content a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := resolve(pageURL, href)
		if fileTypeOf(abs) == "" {
			return
		}
		links = append(links, Link{
			URL:      abs,
			Title:    titleOrFallback(sel.Text(), abs),
			FileType: fileTypeOf(abs),
		})
	})
	return links, nil
}

func (ugcScraper) NextPage(pageHTML, pageURL string) (string, bool) {
	return findNextLink(pageHTML, pageURL, "a.pager-next, .pagination a[rel=next]")
}

// aicteScraper handles the AICTE circulars/approvals listing DOM.
type aicteScraper struct{}

func (aicteScraper) DiscoverLinks(pageHTML, pageURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	var links []Link
	doc.Find(".circular-list a[href], .approval-list a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := resolve(pageURL, href)
		if fileTypeOf(abs) == "" {
			return
		}
		links = append(links, Link{
			URL:      abs,
			Title:    titleOrFallback(sel.Text(), abs),
			FileType: fileTypeOf(abs),
		})
	})
	return links, nil
}

func (aicteScraper) NextPage(pageHTML, pageURL string) (string, bool) {
	return findNextLink(pageHTML, pageURL, "a.next-page")
}

// genericScraper collects any anchor whose href ends in a document
// extension, or whose link text matches one of the source's keywords.
type genericScraper struct {
	keywords []string
}

func (g genericScraper) DiscoverLinks(pageHTML, pageURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	var links []Link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := resolve(pageURL, href)
		text := sel.Text()
		ft := fileTypeOf(abs)
		if ft == "" && !sources.MatchesKeywords(text, g.keywords) {
			return
		}
		links = append(links, Link{URL: abs, Title: titleOrFallback(text, abs), FileType: ft})
	})
	return links, nil
}

func (g genericScraper) NextPage(pageHTML, pageURL string) (string, bool) {
	return findNextLink(pageHTML, pageURL, "a.next, a[rel=next], .pagination a:contains(Next)")
}

func findNextLink(pageHTML, pageURL, selector string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	href, ok := sel.Attr("href")
	if !ok || href == "" {
		return "", false
	}
	return resolve(pageURL, href), true
}
