package collector

import (
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(QueueTestSuite))

type QueueTestSuite struct{}

func (s *QueueTestSuite) TestFIFOWithoutDuplicates(c *gc.C) {
	q := NewLinkQueue("a", "b", "a")
	c.Assert(q.Push("c"), gc.Equals, true)
	c.Assert(q.Push("b"), gc.Equals, false)
	c.Assert(q.Len(), gc.Equals, 3)
	c.Assert(q.Contains("b"), gc.Equals, true)

	link, ok := q.Pop()
	c.Assert(ok, gc.Equals, true)
	c.Assert(link, gc.Equals, "a")
	c.Assert(q.Contains("a"), gc.Equals, false)
	c.Assert(q.Push("a"), gc.Equals, true)
	c.Assert(q.Links(), gc.DeepEquals, []string{"b", "c", "a"})

	c.Assert(q.Drain(), gc.DeepEquals, []string{"b", "c", "a"})
	c.Assert(q.HasLink(), gc.Equals, false)
	_, ok = q.Pop()
	c.Assert(ok, gc.Equals, false)
}

func (s *QueueTestSuite) TestOverflow(c *gc.C) {
	q := NewLinkQueue("a", "b", "c", "d")
	c.Assert(q.Overflow(2), gc.DeepEquals, []string{"c", "d"})
	c.Assert(q.Links(), gc.DeepEquals, []string{"a", "b"})
	c.Assert(q.Contains("c"), gc.Equals, false)
	c.Assert(q.Overflow(5), gc.IsNil)
}

func (s *QueueTestSuite) TestAuthority(c *gc.C) {
	authority, err := Authority("HTTP://Example.COM:8080/a/b?c=d#e")
	c.Assert(err, gc.IsNil)
	c.Assert(authority, gc.Equals, "http://example.com:8080")

	_, err = Authority("/relative/path")
	c.Assert(err, gc.NotNil)
}

func (s *QueueTestSuite) TestTransferAuthority(c *gc.C) {
	global := NewLinkQueue(
		"http://a.test/1",
		"http://b.test/1",
		"http://a.test/2",
		"http://a.test/3",
		"http://c.test/1",
	)
	local := NewLinkQueue()

	authority, err := TransferAuthority(global, local, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(authority, gc.Equals, "http://a.test")
	c.Assert(local.Links(), gc.DeepEquals, []string{"http://a.test/1", "http://a.test/2"})
	c.Assert(global.Links(), gc.DeepEquals, []string{"http://b.test/1", "http://a.test/3", "http://c.test/1"})

	local.Drain()
	authority, err = TransferAuthority(global, local, 10)
	c.Assert(err, gc.IsNil)
	c.Assert(authority, gc.Equals, "http://b.test")
	c.Assert(local.Links(), gc.DeepEquals, []string{"http://b.test/1"})
}

func (s *QueueTestSuite) TestTransferFromEmptyGlobal(c *gc.C) {
	_, err := TransferAuthority(NewLinkQueue("not a url"), NewLinkQueue(), 5)
	c.Assert(err, gc.Equals, ErrQueuesExhausted)
}
