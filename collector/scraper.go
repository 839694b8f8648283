package collector

import (
	"context"
	"io"
	"io/ioutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/xerrors"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 10 << 20

type Page struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ContentType string   `json:"content_type"`
	Text        string   `json:"-"`
	Links       []string `json:"links"`
}

type FailedPage struct {
	URL        string `json:"url"`
	FailReason string `json:"fail_reason"`
	Timestamp  int64  `json:"timestamp"`
}

// Scraper fetches pages and turns them into Pages.
type Scraper struct {
	requester Requester
}

func NewScraper(requester Requester) *Scraper {
	return &Scraper{requester: requester}
}

// Scrape downloads url and parses it according to its content type. HTML is
// parsed for title, text and links; plain text is kept as text only. Any
// other content type is an error.
func (s *Scraper) Scrape(ctx context.Context, url string) (*Page, error) {
	response, err := s.requester.GetRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = response.Body.Close() }()

	body := io.LimitReader(response.Body, maxBodySize)
	contentType := strings.ToLower(response.Header.Get("Content-Type"))
	switch {
	case contentType == "" || strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml"):
		page, err := ParsePage(url, body)
		if err != nil {
			return nil, err
		}
		page.ContentType = contentType
		return page, nil
	case strings.Contains(contentType, "text/plain"):
		raw, err := ioutil.ReadAll(body)
		if err != nil {
			return nil, xerrors.Errorf("read body: %w", err)
		}
		return &Page{
			URL:         url,
			ContentType: contentType,
			Text:        NormalizeText(string(raw)),
			Links:       []string{},
		}, nil
	default:
		return nil, xerrors.Errorf("unsupported content type %q", contentType)
	}
}

// ParsePage extracts the title, description, visible body text and outgoing
// links of an HTML document. Links are resolved against base; duplicates and
// links that are not http or https are dropped.
func ParsePage(base string, body io.Reader) (*Page, error) {
	root, err := html.Parse(body)
	if err != nil {
		return nil, xerrors.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Find("script, style, noscript").Remove()

	page := &Page{
		URL:   base,
		Title: TrimAndSanitize(doc.Find("title").First().Text()),
		Links: []string{},
	}

	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if name, _ := s.Attr("name"); strings.EqualFold(name, "description") {
			content, _ := s.Attr("content")
			page.Description = TrimAndSanitize(content)
			return false
		}
		return true
	})

	textRoot := doc.Find("body")
	if textRoot.Length() == 0 {
		textRoot = doc.Selection
	}
	var text strings.Builder
	for _, n := range textRoot.Nodes {
		collectText(n, &text)
	}
	page.Text = NormalizeText(text.String())

	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, err := AbsoluteURL(base, href)
		if err != nil || seen[link] {
			return
		}
		seen[link] = true
		page.Links = append(page.Links, link)
	})
	return page, nil
}

// collectText writes every text node below n separated by spaces, so words
// in adjacent elements do not run together.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
