package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"golang.org/x/time/rate"
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(ScraperTestSuite))

type ScraperTestSuite struct{}

const samplePage = `<html><head><title> My  Page </title>
<meta name="Description" content="about things"><style>p { color: red }</style></head>
<body><p>Alpha, beta!</p><script>var hidden = 1;</script><p>Gamma&amp;delta</p>
<a href="/b#frag">b</a><a href="http://other.test/x">x</a><a href="/b">dup</a>
<a href="mailto:me@a.test">m</a><a href="#top">t</a>
<noscript>hidden</noscript></body></html>`

func (s *ScraperTestSuite) TestParsePage(c *gc.C) {
	page, err := ParsePage("http://a.test/dir/page", strings.NewReader(samplePage))
	c.Assert(err, gc.IsNil)
	c.Assert(page.Title, gc.Equals, "My Page")
	c.Assert(page.Description, gc.Equals, "about things")
	c.Assert(page.Text, gc.Equals, "alpha beta gamma delta b x dup m t")
	c.Assert(page.Links, gc.DeepEquals, []string{"http://a.test/b", "http://other.test/x"})
}

func (s *ScraperTestSuite) TestParsePageWithoutMarkup(c *gc.C) {
	page, err := ParsePage("http://a.test/", strings.NewReader("alpha beta alpha gamma"))
	c.Assert(err, gc.IsNil)
	c.Assert(page.Text, gc.Equals, "alpha beta alpha gamma")
	c.Assert(page.Links, gc.HasLen, 0)
}

func (s *ScraperTestSuite) TestAbsoluteURL(c *gc.C) {
	base := "http://a.test/dir/page"
	specs := []struct {
		href string
		want string
	}{
		{"../x", "http://a.test/x"},
		{"sub?q=1#frag", "http://a.test/dir/sub?q=1"},
		{"//cdn.test/y", "http://cdn.test/y"},
		{"https://b.test", "https://b.test/"},
	}
	for _, spec := range specs {
		got, err := AbsoluteURL(base, spec.href)
		c.Assert(err, gc.IsNil, gc.Commentf("href %q", spec.href))
		c.Assert(got, gc.Equals, spec.want)
	}

	for _, href := range []string{"#top", "", "ftp://files.test/a", "javascript:void(0)"} {
		_, err := AbsoluteURL(base, href)
		c.Assert(err, gc.NotNil, gc.Commentf("href %q", href))
	}
}

func (s *ScraperTestSuite) TestScrapeContentTypes(c *gc.C) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "Plain TEXT, with <tags>")
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "\x89PNG")
	})
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<p>%s</p>", r.UserAgent())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	scraper := NewScraper(NewRequest(5 * time.Second))
	ctx := context.Background()

	page, err := scraper.Scrape(ctx, srv.URL+"/plain")
	c.Assert(err, gc.IsNil)
	c.Assert(page.Text, gc.Equals, "plain text with tags")
	c.Assert(page.Links, gc.HasLen, 0)

	_, err = scraper.Scrape(ctx, srv.URL+"/image")
	c.Assert(err, gc.ErrorMatches, `unsupported content type "image/png"`)

	_, err = scraper.Scrape(ctx, srv.URL+"/missing")
	c.Assert(err, gc.ErrorMatches, "status code: 404")

	page, err = scraper.Scrape(ctx, srv.URL+"/agent")
	c.Assert(err, gc.IsNil)
	c.Assert(page.Text, gc.Equals, NormalizeText(DefaultUserAgent))
}

func (s *ScraperTestSuite) TestRequestLimiter(c *gc.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	req := NewRequest(5 * time.Second)
	req.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	res, err := req.GetRequest(context.Background(), srv.URL)
	c.Assert(err, gc.IsNil)
	_ = res.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = req.GetRequest(ctx, srv.URL)
	c.Assert(err, gc.ErrorMatches, "rate limiter: .*")
}
