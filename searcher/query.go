package searcher

import (
	"strings"

	"webcrawler/analysis"
)

type Kind int

const (
	Empty Kind = iota
	Word
	Not
	And
	Or
)

// Node is one element of a parsed boolean query. Word and Not carry a Term;
// And and Or carry both children. Empty stands for a side of an operator
// that had nothing left after filtering.
type Node struct {
	Kind  Kind
	Term  string
	Left  *Node
	Right *Node
}

// token is either a pending operator or an already built node.
type token struct {
	op   string
	node *Node
}

// Parse turns a free-text query into a tree. Operators are matched case
// insensitively; every other word is lower-cased, filtered and stemmed like
// document text. The first AND in the list splits it, otherwise the first OR;
// adjacent words are joined by an implicit AND.
func Parse(query string, analyzer *analysis.Analyzer) *Node {
	var tokens []token
	for _, word := range analyzer.Filterer.Lowercase(analyzer.Tokenizer.Tokenize(query)) {
		if len(word) <= 1 || analyzer.Filterer.IsBooleanStopWord(word) {
			continue
		}
		if analysis.BooleanWords[word] {
			tokens = append(tokens, token{op: strings.ToUpper(word)})
			continue
		}
		tokens = append(tokens, token{node: &Node{Kind: Word, Term: analyzer.Stemmer.StemWord(word)}})
	}
	return build(tokens)
}

func build(tokens []token) *Node {
	tokens = bindNot(tokens)

	for _, op := range []string{"AND", "OR"} {
		for i, t := range tokens {
			if t.op != op {
				continue
			}
			kind := And
			if op == "OR" {
				kind = Or
			}
			return &Node{Kind: kind, Left: build(tokens[:i]), Right: build(tokens[i+1:])}
		}
	}

	switch len(tokens) {
	case 0:
		return &Node{Kind: Empty}
	case 1:
		return tokens[0].node
	}

	joined := make([]token, 0, 2*len(tokens)-1)
	for i, t := range tokens {
		if i > 0 {
			joined = append(joined, token{op: "AND"})
		}
		joined = append(joined, t)
	}
	return build(joined)
}

// bindNot folds every NOT into the word that follows it. A NOT followed by
// another operator, or by nothing, is dropped.
func bindNot(tokens []token) []token {
	out := make([]token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.op != "NOT" {
			out = append(out, t)
			continue
		}
		if i+1 < len(tokens) && tokens[i+1].node != nil && tokens[i+1].node.Kind == Word {
			out = append(out, token{node: &Node{Kind: Not, Term: tokens[i+1].node.Term}})
			i++
		}
	}
	return out
}

// String renders the tree one node per line, children indented by dashes.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n *Node) write(b *strings.Builder, level int) {
	line := func(level int, msg string) {
		b.WriteString(strings.Repeat("-", level))
		b.WriteString(msg)
		b.WriteString("\n")
	}

	switch n.Kind {
	case Word:
		line(level, "[WORD] "+n.Term)
	case Not:
		line(level, "[NOT]")
		line(level+1, "[WORD] "+n.Term)
	case And, Or:
		if n.Kind == And {
			line(level, "[AND]")
		} else {
			line(level, "[OR]")
		}
		line(level, "Left side:")
		n.Left.write(b, level+1)
		line(level, "Right side:")
		n.Right.write(b, level+1)
	default:
		line(level, "[EMPTY]")
	}
}
