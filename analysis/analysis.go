package analysis

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"strings"

	"github.com/kljensen/snowball/english"
	"golang.org/x/xerrors"
)

//go:embed stopwords.txt
var defaultStopWords string

// BooleanWords are the reserved operators of boolean queries. They are never
// treated as stop words by the boolean-aware filter.
var BooleanWords = map[string]bool{
	"and": true,
	"or":  true,
	"not": true,
}

type Tokenizer struct{}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize splits s on whitespace.
func (t *Tokenizer) Tokenize(s string) []string {
	return strings.Fields(s)
}

type Filterer struct {
	StopWords map[string]bool
}

// NewFilterer creates a filterer using the embedded English stop word list.
func NewFilterer() (*Filterer, error) {
	return NewFiltererFromReader(strings.NewReader(defaultStopWords))
}

// NewFiltererFromFile loads one stop word per line from path.
func NewFiltererFromFile(path string) (*Filterer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("open stop words: %w", err)
	}
	defer file.Close()
	return NewFiltererFromReader(file)
}

func NewFiltererFromReader(r io.Reader) (*Filterer, error) {
	stopWords := map[string]bool{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word != "" {
			stopWords[word] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("read stop words: %w", err)
	}
	if len(stopWords) == 0 {
		return nil, xerrors.New("stop word list is empty")
	}
	return &Filterer{StopWords: stopWords}, nil
}

func (f *Filterer) Lowercase(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = strings.ToLower(token)
	}
	return out
}

func (f *Filterer) IsStopWord(token string) bool {
	return f.StopWords[strings.ToLower(token)]
}

// IsBooleanStopWord is IsStopWord with the boolean operators exempted.
func (f *Filterer) IsBooleanStopWord(token string) bool {
	lower := strings.ToLower(token)
	return !BooleanWords[lower] && f.StopWords[lower]
}

// RemoveStopWords drops stop words and tokens of length one or less.
func (f *Filterer) RemoveStopWords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) <= 1 || f.IsStopWord(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

type Stemmer struct{}

func NewStemmer() *Stemmer {
	return &Stemmer{}
}

func (s *Stemmer) StemWord(word string) string {
	return english.Stem(word, true)
}

func (s *Stemmer) Stem(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = s.StemWord(token)
	}
	return out
}

// Analyzer chains tokenizing, filtering and stemming the way documents and
// queries are reduced to index terms.
type Analyzer struct {
	Tokenizer *Tokenizer
	Filterer  *Filterer
	Stemmer   *Stemmer
}

func NewAnalyzer() (*Analyzer, error) {
	filterer, err := NewFilterer()
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		Tokenizer: NewTokenizer(),
		Filterer:  filterer,
		Stemmer:   NewStemmer(),
	}, nil
}

// Filter tokenizes s and returns the lower-cased tokens that survive stop word
// and length filtering, unstemmed and in document order.
func (a *Analyzer) Filter(s string) []string {
	tokens := a.Tokenizer.Tokenize(s)
	tokens = a.Filterer.Lowercase(tokens)
	return a.Filterer.RemoveStopWords(tokens)
}

func (a *Analyzer) Analyze(s string) []string {
	return a.Stemmer.Stem(a.Filter(s))
}
