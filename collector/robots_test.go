package collector

import (
	"strings"
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(RobotsTestSuite))

type RobotsTestSuite struct{}

const sampleRobots = `# robots for a.test
User-agent: Googlebot
Disallow: /google-only
Crawl-delay: 9

User-agent: *
Disallow: /private
Disallow: /tmp/*.html
Disallow:
Crawl-delay: 3

User-agent: WebCrawler
Disallow: /never-read
`

func (s *RobotsTestSuite) TestWildcardBlock(c *gc.C) {
	policy, err := ParseRobots(strings.NewReader(sampleRobots), "WebCrawler")
	c.Assert(err, gc.IsNil)
	c.Assert(policy.Patterns(), gc.DeepEquals, []string{`^/private`, `^/tmp/.*?\.html`})
	c.Assert(policy.CrawlDelay(), gc.Equals, 3*time.Second)

	c.Assert(policy.IsAllowed("/"), gc.Equals, true)
	c.Assert(policy.IsAllowed(""), gc.Equals, true)
	c.Assert(policy.IsAllowed("/private"), gc.Equals, false)
	c.Assert(policy.IsAllowed("/private/notes?id=1"), gc.Equals, false)
	c.Assert(policy.IsAllowed("/public/private"), gc.Equals, true)
	c.Assert(policy.IsAllowed("/tmp/a/b.html"), gc.Equals, false)
	c.Assert(policy.IsAllowed("/tmp/a.txt"), gc.Equals, true)
	c.Assert(policy.IsAllowed("/google-only"), gc.Equals, true)
	c.Assert(policy.IsAllowed("/never-read"), gc.Equals, true)
}

func (s *RobotsTestSuite) TestOwnAgentAndCaseInsensitiveKeys(c *gc.C) {
	robots := "USER-AGENT: webcrawler\nDISALLOW: /mine\nCRAWL-DELAY: 2\n"
	policy, err := ParseRobots(strings.NewReader(robots), "WebCrawler")
	c.Assert(err, gc.IsNil)
	c.Assert(policy.IsAllowed("/mine/page"), gc.Equals, false)
	c.Assert(policy.CrawlDelay(), gc.Equals, 2*time.Second)
}

func (s *RobotsTestSuite) TestGroupedAgents(c *gc.C) {
	robots := "User-agent: other\nDisallow: /other\n\nUser-agent: other2\nUser-agent: *\nDisallow: /x\n"
	policy, err := ParseRobots(strings.NewReader(robots), "WebCrawler")
	c.Assert(err, gc.IsNil)
	c.Assert(policy.Patterns(), gc.DeepEquals, []string{`^/x`})
}

func (s *RobotsTestSuite) TestOtherAgentsDelayIgnored(c *gc.C) {
	robots := "User-agent: other\nCrawl-delay: 30\nUser-agent: *\nCrawl-delay: nonsense\n"
	policy, err := ParseRobots(strings.NewReader(robots), "WebCrawler")
	c.Assert(err, gc.IsNil)
	c.Assert(policy.CrawlDelay(), gc.Equals, DefaultCrawlDelay)

	policy, err = ParseRobots(strings.NewReader("User-agent: *\nCrawl-delay: -4\n"), "WebCrawler")
	c.Assert(err, gc.IsNil)
	c.Assert(policy.CrawlDelay(), gc.Equals, DefaultCrawlDelay)
}

func (s *RobotsTestSuite) TestAllowAll(c *gc.C) {
	policy := AllowAll()
	c.Assert(policy.IsAllowed("/anything"), gc.Equals, true)
	c.Assert(policy.Patterns(), gc.HasLen, 0)
	c.Assert(policy.CrawlDelay(), gc.Equals, time.Second)
}
