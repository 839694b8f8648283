package registry

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"golang.org/x/xerrors"
	gc "gopkg.in/check.v1"

	"webcrawler/analysis"
)

var _ = gc.Suite(new(RegistryTestSuite))

func Test(t *testing.T) { gc.TestingT(t) }

type RegistryTestSuite struct {
	analyzer *analysis.Analyzer
	reg      *Registry
}

func (s *RegistryTestSuite) SetUpSuite(c *gc.C) {
	analyzer, err := analysis.NewAnalyzer()
	c.Assert(err, gc.IsNil)
	s.analyzer = analyzer
}

func (s *RegistryTestSuite) SetUpTest(c *gc.C) {
	s.reg = New()
	s.reg.rnd = rand.New(rand.NewSource(42))
}

func (s *RegistryTestSuite) add(c *gc.C, address, contents string, links ...string) int {
	id, added := s.reg.AddDocument(NewDocument(address, contents, links, s.analyzer))
	c.Assert(added, gc.Equals, true)
	return id
}

func (s *RegistryTestSuite) TestNewDocument(c *gc.C) {
	doc := NewDocument("http://a.test/", "Cats and the dogs hunt cats", []string{"http://b.test/", "http://b.test/"}, s.analyzer)
	c.Assert(doc.ID(), gc.Equals, 0)
	c.Assert(doc.Tokens, gc.DeepEquals, []string{"cat", "dog", "hunt"})
	c.Assert(doc.Keywords, gc.DeepEquals, map[string]int{"cat": 2, "dog": 1, "hunt": 1})
	c.Assert(doc.Links, gc.DeepEquals, []string{"http://b.test/"})
	c.Assert(doc.HasToken("cat"), gc.Equals, true)
	c.Assert(doc.HasToken("bird"), gc.Equals, false)
	// cats dogs hunt cats: exactly one four-word shingle.
	c.Assert(doc.Signature.Empty(), gc.Equals, false)
}

func (s *RegistryTestSuite) TestDuplicateAddressKeepsOriginal(c *gc.C) {
	first := s.add(c, "http://a.test/", "cat dog")

	id, added := s.reg.AddDocument(NewDocument("http://a.test/", "bird", nil, s.analyzer))
	c.Assert(added, gc.Equals, false)
	c.Assert(id, gc.Equals, first)
	c.Assert(s.reg.Len(), gc.Equals, 1)
	c.Assert(s.reg.LastID(), gc.Equals, 1)

	doc, err := s.reg.Document(first)
	c.Assert(err, gc.IsNil)
	c.Assert(doc.HasToken("cat"), gc.Equals, true)
}

func (s *RegistryTestSuite) TestReturnedDocumentsAreCopies(c *gc.C) {
	id := s.add(c, "http://a.test/", "cat dog")

	doc, err := s.reg.Document(id)
	c.Assert(err, gc.IsNil)
	c.Assert(doc.ID(), gc.Equals, id)
	doc.Tokens[0] = "fish"
	doc.Keywords["cat"] = 99
	s.reg.Documents()[0].Links = append(s.reg.Documents()[0].Links, "http://b.test/")
	s.reg.Clean(s.analyzer)

	stored, err := s.reg.Document(id)
	c.Assert(err, gc.IsNil)
	c.Assert(stored.Tokens, gc.DeepEquals, []string{"cat", "dog"})
	c.Assert(stored.Keywords, gc.DeepEquals, map[string]int{"cat": 1, "dog": 1})
	c.Assert(stored.Links, gc.HasLen, 0)
	c.Assert(doc.Keywords["cat"], gc.Equals, 99)
}

func (s *RegistryTestSuite) TestIdsAreSequential(c *gc.C) {
	c.Assert(s.add(c, "http://a.test/1", "cat"), gc.Equals, 1)
	c.Assert(s.add(c, "http://a.test/2", "dog"), gc.Equals, 2)
	c.Assert(s.add(c, "http://a.test/3", "bird"), gc.Equals, 3)

	id, ok := s.reg.Lookup("http://a.test/2")
	c.Assert(ok, gc.Equals, true)
	c.Assert(id, gc.Equals, 2)

	docs := s.reg.Documents()
	c.Assert(docs, gc.HasLen, 3)
	for i, doc := range docs {
		c.Assert(doc.ID(), gc.Equals, i+1)
	}
}

func (s *RegistryTestSuite) TestUnknownDocument(c *gc.C) {
	_, err := s.reg.Document(7)
	c.Assert(xerrors.Is(err, ErrNotFound), gc.Equals, true)

	_, err = s.reg.Duplicates(7, 0.5)
	c.Assert(xerrors.Is(err, ErrNotFound), gc.Equals, true)

	_, err = s.reg.PageRank(7)
	c.Assert(xerrors.Is(err, ErrNotFound), gc.Equals, true)
}

func (s *RegistryTestSuite) TestIndexPostings(c *gc.C) {
	s.add(c, "http://a.test/1", "cat dog cat")
	s.add(c, "http://a.test/2", "dog bird")

	idx := s.reg.Index()
	c.Assert(idx.Len(), gc.Equals, 2)
	c.Assert(idx.Postings("dog"), gc.DeepEquals, []Posting{{DocumentID: 1, Frequency: 1}, {DocumentID: 2, Frequency: 1}})
	c.Assert(idx.Postings("cat"), gc.DeepEquals, []Posting{{DocumentID: 1, Frequency: 2}})
	c.Assert(idx.Postings("fish"), gc.IsNil)
	c.Assert(idx.DocumentFrequency("dog"), gc.Equals, 2)
	c.Assert(idx.Terms(), gc.DeepEquals, []string{"bird", "cat", "dog"})
	c.Assert(idx.TermCount(), gc.Equals, 3)

	var buf bytes.Buffer
	n, err := idx.WriteTo(&buf)
	c.Assert(err, gc.IsNil)
	c.Assert(n, gc.Equals, int64(buf.Len()))
	c.Assert(buf.String(), gc.Equals, "bird -> 2:1\ncat -> 1:2\ndog -> 1:1 2:1\n")
}

func (s *RegistryTestSuite) TestIndexRebuiltOncePerChange(c *gc.C) {
	s.add(c, "http://a.test/1", "cat")
	c.Assert(s.reg.IndexBuilds(), gc.Equals, 0)

	first := s.reg.Index()
	c.Assert(s.reg.IndexBuilds(), gc.Equals, 1)
	c.Assert(s.reg.Index(), gc.Equals, first)
	c.Assert(s.reg.IndexBuilds(), gc.Equals, 1)

	s.add(c, "http://a.test/2", "dog")
	second := s.reg.Index()
	s.reg.Index()
	c.Assert(s.reg.IndexBuilds(), gc.Equals, 2)
	c.Assert(second.Len(), gc.Equals, 2)
	c.Assert(first.Len(), gc.Equals, 1)

	// A duplicate insert does not invalidate anything.
	s.reg.AddDocument(NewDocument("http://a.test/2", "bird", nil, s.analyzer))
	s.reg.Index()
	c.Assert(s.reg.IndexBuilds(), gc.Equals, 2)

	s.reg.PageRanks()
	s.reg.PageRanks()
	c.Assert(s.reg.RankBuilds(), gc.Equals, 1)
	s.reg.Clean(s.analyzer)
	s.reg.Index()
	s.reg.PageRanks()
	c.Assert(s.reg.IndexBuilds(), gc.Equals, 3)
	c.Assert(s.reg.RankBuilds(), gc.Equals, 2)
}

func (s *RegistryTestSuite) TestPageRankEmpty(c *gc.C) {
	c.Assert(s.reg.PageRanks(), gc.DeepEquals, map[int]float64{})
}

func (s *RegistryTestSuite) TestPageRankSingleDocument(c *gc.C) {
	id := s.add(c, "http://a.test/", "cat", "http://elsewhere.test/")
	rank, err := s.reg.PageRank(id)
	c.Assert(err, gc.IsNil)
	c.Assert(rank, gc.Equals, 1.0)
}

func (s *RegistryTestSuite) TestPageRankFavoursLinkedDocument(c *gc.C) {
	hub := s.add(c, "http://a.test/hub", "hub")
	for _, path := range []string{"x", "y", "z"} {
		s.add(c, "http://a.test/"+path, path+"ray", "http://a.test/hub")
	}
	ranks := s.reg.PageRanks()
	c.Assert(ranks, gc.HasLen, 4)

	total := 0.0
	for id, rank := range ranks {
		total += rank
		if id != hub {
			c.Assert(ranks[hub] > rank, gc.Equals, true)
		}
	}
	c.Assert(math.Abs(total-1) < 1e-9, gc.Equals, true)
}

func (s *RegistryTestSuite) TestPageRankSymmetricPair(c *gc.C) {
	a := s.add(c, "http://a.test/a", "cat", "http://a.test/b")
	b := s.add(c, "http://a.test/b", "dog", "http://a.test/a")
	ranks := s.reg.PageRanks()
	c.Assert(math.Abs(ranks[a]-0.5) < 0.05, gc.Equals, true)
	c.Assert(math.Abs(ranks[b]-0.5) < 0.05, gc.Equals, true)
}

func (s *RegistryTestSuite) TestDuplicates(c *gc.C) {
	text := "quick brown fox jumps over lazy river bank again"
	a := s.add(c, "http://a.test/a", text)
	b := s.add(c, "http://a.test/b", text)
	s.add(c, "http://a.test/c", "entirely different words describing another subject matter here")
	s.add(c, "http://a.test/d", "short")

	matches, err := s.reg.Duplicates(a, 0.9)
	c.Assert(err, gc.IsNil)
	c.Assert(matches, gc.DeepEquals, []Match{{ID: b, Address: "http://a.test/b", Similarity: 1.0}})
}

func (s *RegistryTestSuite) TestSnapshotRestore(c *gc.C) {
	s.add(c, "http://a.test/1", "cat dog", "http://a.test/2")
	s.add(c, "http://a.test/2", "dog bird")
	snap := s.reg.Snapshot()
	c.Assert(snap.LastID, gc.Equals, 2)
	c.Assert(snap.Entries, gc.HasLen, 2)

	restored := New()
	c.Assert(restored.Restore(snap), gc.IsNil)
	c.Assert(restored.Len(), gc.Equals, 2)
	c.Assert(restored.Index().Postings("dog"), gc.DeepEquals, s.reg.Index().Postings("dog"))

	doc, err := restored.Document(2)
	c.Assert(err, gc.IsNil)
	c.Assert(doc.ID(), gc.Equals, 2)

	id, added := restored.AddDocument(NewDocument("http://a.test/3", "fish", nil, s.analyzer))
	c.Assert(added, gc.Equals, true)
	c.Assert(id, gc.Equals, 3)

	// Mutating the snapshot leaves the registry untouched.
	snap.Entries[0].Document.Tokens = nil
	c.Assert(s.reg.Documents()[0].Tokens, gc.DeepEquals, []string{"cat", "dog"})
}

func (s *RegistryTestSuite) TestRestoreRejectsDuplicates(c *gc.C) {
	doc := NewDocument("http://a.test/1", "cat", nil, s.analyzer)
	snap := Snapshot{Entries: []Entry{{ID: 1, Document: doc}, {ID: 1, Document: doc}}}
	c.Assert(s.reg.Restore(snap), gc.ErrorMatches, "restore: duplicate document id 1")

	snap = Snapshot{Entries: []Entry{{ID: 1, Document: doc}, {ID: 2, Document: doc}}}
	c.Assert(s.reg.Restore(snap), gc.ErrorMatches, `restore: duplicate address "http://a.test/1"`)
	c.Assert(s.reg.Len(), gc.Equals, 0)
}

func (s *RegistryTestSuite) TestClean(c *gc.C) {
	doc := &Document{Address: "http://a.test/", Tokens: []string{"cat42", "the", "Dogs!"}}
	doc.Clean(s.analyzer)
	c.Assert(doc.Tokens, gc.DeepEquals, []string{"cat", "dog"})
	c.Assert(doc.Keywords, gc.DeepEquals, map[string]int{"cat": 1, "dog": 1})
}
