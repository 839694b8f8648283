package registry

import (
	"regexp"
	"sort"

	"webcrawler/analysis"
	"webcrawler/shingle"
)

var nonLetters = regexp.MustCompile(`[^A-Za-z]`)

// Document is the tokenized form of one crawled page.
type Document struct {
	id int

	Address   string            `json:"address"`
	Tokens    []string          `json:"tokens"`
	Keywords  map[string]int    `json:"keywords"`
	Links     []string          `json:"links"`
	Signature shingle.Signature `json:"signature"`
}

// NewDocument tokenizes contents and derives the token set, keyword
// frequencies and shingle signature of the page at address.
func NewDocument(address, contents string, links []string, analyzer *analysis.Analyzer) *Document {
	doc := &Document{
		Address: address,
		Links:   uniqueSorted(links),
	}
	doc.derive(analyzer.Filter(contents), analyzer)
	return doc
}

// ID returns the id assigned by the registry, 0 while unregistered.
func (d *Document) ID() int {
	return d.id
}

func (d *Document) HasToken(term string) bool {
	i := sort.SearchStrings(d.Tokens, term)
	return i < len(d.Tokens) && d.Tokens[i] == term
}

// Clean re-derives the document from its current token set, dropping any
// non-letter characters first. Registered documents must be cleaned through
// Registry.Clean so the derived index is invalidated.
func (d *Document) Clean(analyzer *analysis.Analyzer) {
	cleaned := make([]string, 0, len(d.Tokens))
	for _, token := range d.Tokens {
		cleaned = append(cleaned, nonLetters.ReplaceAllString(token, ""))
	}
	cleaned = analyzer.Filterer.Lowercase(cleaned)
	d.derive(analyzer.Filterer.RemoveStopWords(cleaned), analyzer)
}

func (d *Document) derive(filtered []string, analyzer *analysis.Analyzer) {
	d.Signature = shingle.Sign(filtered, shingle.DefaultSize)

	stemmed := analyzer.Stemmer.Stem(filtered)
	keywords := make(map[string]int, len(stemmed))
	for _, term := range stemmed {
		if term == "" {
			continue
		}
		keywords[term]++
	}
	tokens := make([]string, 0, len(keywords))
	for term := range keywords {
		tokens = append(tokens, term)
	}
	sort.Strings(tokens)

	d.Tokens = tokens
	d.Keywords = keywords
}

func (d *Document) clone() *Document {
	keywords := make(map[string]int, len(d.Keywords))
	for term, count := range d.Keywords {
		keywords[term] = count
	}
	return &Document{
		id:        d.id,
		Address:   d.Address,
		Tokens:    append([]string(nil), d.Tokens...),
		Keywords:  keywords,
		Links:     append([]string(nil), d.Links...),
		Signature: d.Signature,
	}
}

func uniqueSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := set[v]; ok || v == "" {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
