// Package collector crawls the web politely: it honours robots.txt, waits
// out crawl delays, prefers finishing one authority before moving to the
// next and feeds every page it fetches into a registry.
package collector

import (
	"context"
	"io/ioutil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"webcrawler/analysis"
	"webcrawler/registry"
	"webcrawler/store"
)

const (
	defaultLocalQueueCapacity = 100
	defaultFairnessThreshold  = 100
	defaultCheckpointEvery    = 10
	defaultBackupInterval     = 5 * time.Minute
	defaultSafetyMargin       = 100 * time.Millisecond
	defaultTimeout            = 30 * time.Second
)

// Store persists crawler checkpoints.
type Store interface {
	SaveState(state *store.State) error
	Backup(dir string) (string, error)
}

// Config encapsulates the settings for a Collector.
type Config struct {
	// Registry receives every successfully fetched page.
	Registry *registry.Registry
	// Analyzer turns page text into document terms.
	Analyzer *analysis.Analyzer
	// Requester fetches pages and robots.txt files. Defaults to a Request
	// with a 30 second timeout.
	Requester Requester
	// Store, when set, receives a checkpoint every CheckpointEvery pages
	// and at the end of a session.
	Store Store
	// BackupDir, when set together with Store, receives a timestamped copy
	// of the store at most once per BackupInterval.
	BackupDir string

	Clock  clock.Clock
	Logger *logrus.Entry

	// AgentName is matched against robots.txt User-agent lines.
	AgentName string

	// PageBudget is the number of pages to fetch in one session.
	PageBudget int

	LocalQueueCapacity int
	// FairnessThreshold is the number of pages served from one refill of
	// the local queue before the rest of it is handed back to the global
	// queue.
	FairnessThreshold int
	CheckpointEvery   int
	BackupInterval    time.Duration
	// SafetyMargin is added to every politeness wait. Defaults to 100ms.
	SafetyMargin time.Duration

	// Blacklist entries exclude every authority containing them.
	Blacklist []string
}

// Validate fills in defaults and reports every missing setting.
func (cfg *Config) Validate() error {
	var err error
	if cfg.Registry == nil {
		err = multierror.Append(err, xerrors.Errorf("registry has not been provided"))
	}
	if cfg.Analyzer == nil {
		err = multierror.Append(err, xerrors.Errorf("analyzer has not been provided"))
	}
	if cfg.PageBudget <= 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for page budget"))
	}
	if cfg.Requester == nil {
		cfg.Requester = NewRequest(defaultTimeout)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	if cfg.AgentName == "" {
		cfg.AgentName = DefaultAgentName
	}
	if cfg.LocalQueueCapacity <= 0 {
		cfg.LocalQueueCapacity = defaultLocalQueueCapacity
	}
	if cfg.FairnessThreshold <= 0 {
		cfg.FairnessThreshold = defaultFairnessThreshold
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = defaultCheckpointEvery
	}
	if cfg.BackupInterval <= 0 {
		cfg.BackupInterval = defaultBackupInterval
	}
	if cfg.SafetyMargin < 0 {
		err = multierror.Append(err, xerrors.Errorf("invalid value for safety margin"))
	} else if cfg.SafetyMargin == 0 {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	return err
}

// Collector runs crawl sessions. It is not safe for concurrent use; the
// registry it feeds is.
type Collector struct {
	cfg     Config
	scraper *Scraper

	local   *LinkQueue
	global  *LinkQueue
	crawled map[string]struct{}
	failed  map[string]struct{}
	robots  map[string]*RobotsPolicy
	seeds   []string

	lastFetch  time.Time
	lastBackup time.Time
}

func NewCollector(cfg Config) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("collector config validation failed: %w", err)
	}
	return &Collector{
		cfg:     cfg,
		scraper: NewScraper(cfg.Requester),
		local:   NewLinkQueue(),
		global:  NewLinkQueue(),
		crawled: map[string]struct{}{},
		failed:  map[string]struct{}{},
		robots:  map[string]*RobotsPolicy{},
	}, nil
}

// SetSeeds queues the starting URLs. Seeds sharing the authority of the local
// queue go to it, the others to the global queue. An empty local queue takes
// the authority of the first seed. Nothing is queued if any seed is invalid.
func (c *Collector) SetSeeds(seeds []string) error {
	var err error
	for _, seed := range seeds {
		u, perr := url.ParseRequestURI(seed)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			err = multierror.Append(err, xerrors.Errorf("seed %q is not a valid http url", seed))
		}
	}
	if err != nil {
		return err
	}

	var current string
	if queued := c.local.Links(); len(queued) != 0 {
		current, _ = Authority(queued[0])
	}
	for _, seed := range seeds {
		authority, _ := Authority(seed)
		if current == "" {
			current = authority
		}
		if c.known(seed) {
			continue
		}
		if authority == current {
			c.local.Push(seed)
		} else {
			c.global.Push(seed)
		}
	}
	c.seeds = append(c.seeds, seeds...)
	return nil
}

// Crawl fetches pages until the page budget is spent or both queues run dry.
// Cancelling ctx stops the session between pages; the final checkpoint is
// still written and ctx.Err() is returned along with the report.
func (c *Collector) Crawl(ctx context.Context) (*Report, error) {
	sessionID := uuid.New().String()
	logger := c.cfg.Logger.WithField("session", sessionID)
	report := newReport(sessionID, c.seeds, c.cfg.PageBudget, c.cfg.Clock.Now())
	logger.WithFields(logrus.Fields{
		"budget": c.cfg.PageBudget,
		"local":  c.local.Len(),
		"global": c.global.Len(),
	}).Info("crawl session started")

	for _, link := range c.local.Overflow(c.cfg.LocalQueueCapacity) {
		c.global.Push(link)
	}

	var (
		crawlErr    error
		pages       int
		sinceRefill int
	)
	for pages < c.cfg.PageBudget {
		if err := ctx.Err(); err != nil {
			crawlErr = err
			break
		}

		if !c.local.HasLink() {
			authority, err := TransferAuthority(c.global, c.local, c.cfg.LocalQueueCapacity)
			if xerrors.Is(err, ErrQueuesExhausted) {
				logger.Info("link queues exhausted")
				break
			}
			logger.WithFields(logrus.Fields{
				"authority": authority,
				"links":     c.local.Len(),
			}).Debug("refilled local queue")
			sinceRefill = 0
			continue
		}

		link, _ := c.local.Pop()
		if c.isCrawled(link) || c.isFailed(link) || c.blacklisted(link) {
			report.SkippedLinks++
			continue
		}
		authority, err := Authority(link)
		if err != nil {
			report.SkippedLinks++
			continue
		}

		policy := c.policy(ctx, authority, logger)
		if !policy.IsAllowed(RequestPath(link)) {
			logger.WithField("url", link).Debug("disallowed by robots.txt")
			report.DisallowedPages++
			continue
		}

		if !c.lastFetch.IsZero() {
			wait := politenessWait(policy.CrawlDelay(), c.cfg.Clock.Now().Sub(c.lastFetch), c.cfg.SafetyMargin)
			if wait > 0 {
				logger.WithFields(logrus.Fields{"url": link, "wait": wait}).Debug("waiting for crawl delay")
				select {
				case <-c.cfg.Clock.After(wait):
				case <-ctx.Done():
					c.local.Push(link)
					crawlErr = ctx.Err()
				}
				if crawlErr != nil {
					break
				}
			}
		}

		page, err := c.scraper.Scrape(ctx, link)
		if err != nil {
			logger.WithFields(logrus.Fields{"url": link, "err": err}).Warn("scrape failed")
			c.failed[link] = struct{}{}
			report.failed(&FailedPage{URL: link, FailReason: err.Error(), Timestamp: c.cfg.Clock.Now().UTC().Unix()})
			continue
		}
		c.lastFetch = c.cfg.Clock.Now()

		c.cfg.Registry.AddDocument(registry.NewDocument(link, page.Text, page.Links, c.cfg.Analyzer))
		c.crawled[link] = struct{}{}
		pages++
		sinceRefill++
		report.succeeded(authority, page)
		c.enqueue(authority, page.Links)
		logger.WithFields(logrus.Fields{
			"url":   link,
			"page":  pages,
			"links": len(page.Links),
		}).Debug("page crawled")

		if pages%c.cfg.CheckpointEvery == 0 {
			if err := c.checkpoint(logger); err != nil {
				logger.WithField("err", err).Error("checkpoint failed")
			}
		}

		if sinceRefill > c.cfg.FairnessThreshold {
			logger.WithField("authority", authority).Debug("handing local queue back to give other authorities a turn")
			for _, l := range c.local.Drain() {
				c.global.Push(l)
			}
		}
	}

	report.finish(c.cfg.Clock.Now(), c.local.Len(), c.global.Len())
	if err := c.checkpoint(logger); err != nil {
		logger.WithField("err", err).Error("final checkpoint failed")
		return report, multierror.Append(crawlErr, xerrors.Errorf("final checkpoint: %w", err)).ErrorOrNil()
	}
	logger.WithFields(logrus.Fields{
		"succeeded": report.SucceededPages,
		"failed":    report.FailedPages,
		"seconds":   report.ExecutionInSeconds,
	}).Info("crawl session finished")
	return report, crawlErr
}

// politenessWait is how long to sleep before the next fetch when elapsed has
// passed since the previous one.
func politenessWait(delay, elapsed, margin time.Duration) time.Duration {
	if elapsed >= delay {
		return 0
	}
	return delay - elapsed + margin
}

// policy returns the cached robots policy of authority, fetching it on first
// use. A robots.txt that cannot be fetched or parsed allows everything.
func (c *Collector) policy(ctx context.Context, authority string, logger *logrus.Entry) *RobotsPolicy {
	if policy, ok := c.robots[authority]; ok {
		return policy
	}

	policy := AllowAll()
	response, err := c.cfg.Requester.GetRequest(ctx, authority+"/robots.txt")
	if err == nil {
		parsed, perr := ParseRobots(response.Body, c.cfg.AgentName)
		_ = response.Body.Close()
		if perr == nil {
			policy = parsed
		} else {
			err = perr
		}
	}
	if err != nil {
		logger.WithFields(logrus.Fields{"authority": authority, "err": err}).Debug("no usable robots.txt")
	}
	c.robots[authority] = policy
	return policy
}

// enqueue sorts newly discovered links into the local queue when they share
// authority with the page they were found on and into the global queue
// otherwise. Links already crawled, failed or queued are ignored.
func (c *Collector) enqueue(authority string, links []string) {
	for _, link := range links {
		if c.known(link) || c.blacklisted(link) {
			continue
		}
		linkAuthority, err := Authority(link)
		if err != nil {
			continue
		}
		if linkAuthority == authority {
			c.local.Push(link)
		} else {
			c.global.Push(link)
		}
	}
}

func (c *Collector) known(link string) bool {
	return c.isCrawled(link) || c.isFailed(link) || c.local.Contains(link) || c.global.Contains(link)
}

func (c *Collector) isCrawled(link string) bool {
	_, ok := c.crawled[link]
	return ok
}

func (c *Collector) isFailed(link string) bool {
	_, ok := c.failed[link]
	return ok
}

func (c *Collector) blacklisted(link string) bool {
	authority, err := Authority(link)
	if err != nil {
		return true
	}
	for _, entry := range c.cfg.Blacklist {
		if entry != "" && strings.Contains(authority, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

// checkpoint saves the collector state, first backing up the previous one
// when BackupInterval has passed since the last backup.
func (c *Collector) checkpoint(logger *logrus.Entry) error {
	if c.cfg.Store == nil {
		return nil
	}

	now := c.cfg.Clock.Now()
	if c.cfg.BackupDir != "" && (c.lastBackup.IsZero() || now.Sub(c.lastBackup) > c.cfg.BackupInterval) {
		path, err := c.cfg.Store.Backup(c.cfg.BackupDir)
		if err != nil {
			logger.WithField("err", err).Error("backup failed")
		} else {
			c.lastBackup = now
			logger.WithField("path", path).Info("backup written")
		}
	}

	if err := c.cfg.Store.SaveState(c.State()); err != nil {
		return err
	}
	logger.WithField("documents", c.cfg.Registry.Len()).Info("checkpoint written")
	return nil
}

// State captures everything needed to resume crawling later.
func (c *Collector) State() *store.State {
	crawled := make([]string, 0, len(c.crawled))
	for link := range c.crawled {
		crawled = append(crawled, link)
	}
	sort.Strings(crawled)

	return &store.State{
		Registry: c.cfg.Registry.Snapshot(),
		Local:    c.local.Links(),
		Global:   c.global.Links(),
		Crawled:  crawled,
	}
}

// Restore resumes from a previously saved state, replacing the registry
// contents, both queues and the crawled set.
func (c *Collector) Restore(state *store.State) error {
	if err := c.cfg.Registry.Restore(state.Registry); err != nil {
		return xerrors.Errorf("restore registry: %w", err)
	}

	c.crawled = make(map[string]struct{}, len(state.Crawled))
	for _, link := range state.Crawled {
		c.crawled[link] = struct{}{}
	}
	c.failed = map[string]struct{}{}
	c.local = NewLinkQueue()
	c.global = NewLinkQueue()
	for _, link := range state.Local {
		if !c.isCrawled(link) {
			c.local.Push(link)
		}
	}
	for _, link := range state.Global {
		if !c.isCrawled(link) && !c.local.Contains(link) {
			c.global.Push(link)
		}
	}
	return nil
}

// Queues returns the lengths of the local and global queues.
func (c *Collector) Queues() (local, global int) {
	return c.local.Len(), c.global.Len()
}
