// Package searcher answers boolean and ranked queries over the documents of a
// registry.
package searcher

import (
	"io/ioutil"
	"time"

	"github.com/sirupsen/logrus"

	"webcrawler/analysis"
)

// Searcher reduces query text with the same analyzer used for documents and
// runs it against a Source.
type Searcher struct {
	source   Source
	analyzer *analysis.Analyzer
	logger   *logrus.Entry
}

// NewSearcher returns a Searcher over source. A nil logger discards output.
func NewSearcher(source Source, analyzer *analysis.Analyzer, logger *logrus.Entry) *Searcher {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return &Searcher{
		source:   source,
		analyzer: analyzer,
		logger:   logger,
	}
}

func (s *Searcher) Parse(query string) *Node {
	return Parse(query, s.analyzer)
}

// Search runs query as a boolean expression and returns the matching ids.
func (s *Searcher) Search(query string) []int {
	begin := time.Now()
	ids := Execute(s.Parse(query), s.source)
	s.logger.WithFields(logrus.Fields{
		"query":   query,
		"matches": len(ids),
		"elapsed": time.Since(begin),
	}).Debug("boolean search")
	return ids
}

// Rank runs query through the TF-IDF ranker.
func (s *Searcher) Rank(query string, maxResults int, usePageRank bool) []Result {
	begin := time.Now()
	results := Rank(s.analyzer.Analyze(query), s.source, maxResults, usePageRank)
	s.logger.WithFields(logrus.Fields{
		"query":    query,
		"results":  len(results),
		"pagerank": usePageRank,
		"elapsed":  time.Since(begin),
	}).Debug("ranked search")
	return results
}
