package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"

	"webcrawler/analysis"
	"webcrawler/collector"
	"webcrawler/registry"
	"webcrawler/searcher"
	"webcrawler/server"
	"webcrawler/store"
)

const (
	LogFile = "logs.txt"

	minPages       = 5
	maxPages       = 10000
	requestTimeout = 30 * time.Second
)

func main() {
	seeds := flag.String("seed", "", "Comma separated list of URLs to start crawling from")
	pages := flag.Int("pages", 100, "Number of pages to crawl in this session (5 to 10000)")
	dataPath := flag.String("data", "crawler.db", "Path to the state file")
	backupDir := flag.String("backup", "backups", "Directory for timestamped state backups; empty disables them")
	load := flag.Bool("load", false, "Resume from the state saved in the data file")
	query := flag.String("query", "", "Ranked query to run after crawling")
	boolean := flag.String("boolean", "", "Boolean query to run after crawling")
	usePageRank := flag.Bool("pagerank", false, "Reorder ranked results by PageRank")
	maxResults := flag.Int("max", searcher.DefaultMaxResults, "Maximum number of ranked results")
	serve := flag.String("serve", "", "Serve the query API on this address, e.g. :8080")
	reportPath := flag.String("report", "", "Write the crawl report as JSON to this file")
	dumpIndex := flag.String("dump-index", "", "Write the inverted index to this file")
	requestRate := flag.Float64("rate", 0, "Cap on requests per second across all sites; 0 disables it")
	verbose := flag.Bool("v", false, "Log debug messages")
	flag.Parse()

	logger, closeLog, err := openLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger could not be initialized: %s\n", err.Error())
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, options{
		seeds:       splitSeeds(*seeds),
		pages:       clampPages(*pages),
		dataPath:    *dataPath,
		backupDir:   *backupDir,
		load:        *load,
		query:       *query,
		boolean:     *boolean,
		usePageRank: *usePageRank,
		maxResults:  *maxResults,
		serve:       *serve,
		reportPath:  *reportPath,
		dumpIndex:   *dumpIndex,
		rate:        *requestRate,
	}, logger); err != nil {
		logger.WithField("err", err).Error("exiting with error")
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		closeLog()
		os.Exit(1)
	}
}

type options struct {
	seeds       []string
	pages       int
	dataPath    string
	backupDir   string
	load        bool
	query       string
	boolean     string
	usePageRank bool
	maxResults  int
	serve       string
	reportPath  string
	dumpIndex   string
	rate        float64
}

func run(ctx context.Context, opts options, logger *logrus.Entry) error {
	analyzer, err := analysis.NewAnalyzer()
	if err != nil {
		return xerrors.Errorf("analyzer could not be initialized: %w", err)
	}

	st, err := store.Open(opts.dataPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	requester := collector.NewRequest(requestTimeout)
	if opts.rate > 0 {
		requester.Limiter = rate.NewLimiter(rate.Limit(opts.rate), 1)
	}

	reg := registry.New()
	col, err := collector.NewCollector(collector.Config{
		Registry:   reg,
		Analyzer:   analyzer,
		Requester:  requester,
		Store:      st,
		BackupDir:  opts.backupDir,
		Logger:     logger.WithField("component", "collector"),
		PageBudget: opts.pages,
	})
	if err != nil {
		return err
	}

	if opts.load {
		state, err := st.LoadState()
		switch {
		case xerrors.Is(err, store.ErrNoState):
			logger.WithField("path", st.Path()).Info("no saved state, starting fresh")
		case err != nil:
			return err
		default:
			if err = col.Restore(state); err != nil {
				return err
			}
			local, global := col.Queues()
			fmt.Printf("Loaded %d documents, %d queued links\n", reg.Len(), local+global)
		}
	}

	if len(opts.seeds) != 0 || opts.load {
		if err = col.SetSeeds(opts.seeds); err != nil {
			return err
		}
		report, err := col.Crawl(ctx)
		if report != nil {
			fmt.Printf("Crawled %d pages (%d failed, %d disallowed) in %.1fs\n",
				report.SucceededPages, report.FailedPages, report.DisallowedPages, report.ExecutionInSeconds)
			if opts.reportPath != "" {
				if serr := report.Save(opts.reportPath); serr != nil {
					logger.WithField("err", serr).Error("report could not be saved")
				}
			}
		}
		if err != nil {
			return err
		}
	}

	if opts.dumpIndex != "" {
		if err = writeIndex(opts.dumpIndex, reg.Index()); err != nil {
			return err
		}
	}

	s := searcher.NewSearcher(reg, analyzer, logger.WithField("component", "searcher"))
	if opts.query != "" {
		results := s.Rank(opts.query, opts.maxResults, opts.usePageRank)
		fmt.Printf("Search results size: %d\n", len(results))
		for _, res := range results {
			doc, _ := reg.Document(res.ID)
			fmt.Printf("Score: %f --> URL: %s\n", res.Score, doc.Address)
		}
	}
	if opts.boolean != "" {
		ids := s.Search(opts.boolean)
		fmt.Printf("Matching documents: %d\n", len(ids))
		for _, id := range ids {
			doc, _ := reg.Document(id)
			fmt.Printf("%d --> URL: %s\n", id, doc.Address)
		}
	}

	if opts.serve != "" {
		svc, err := server.NewService(server.Config{
			Registry:   reg,
			Analyzer:   analyzer,
			ListenAddr: opts.serve,
			Logger:     logger.WithField("component", "server"),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Serving queries on %s\n", opts.serve)
		return svc.Run(ctx)
	}
	return nil
}

func openLogger(verbose bool) (*logrus.Entry, func(), error) {
	file, err := os.OpenFile(LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(logger), func() { _ = file.Close() }, nil
}

func writeIndex(path string, idx *registry.Index) error {
	file, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("dump index: %w", err)
	}
	if _, err = idx.WriteTo(file); err != nil {
		_ = file.Close()
		return xerrors.Errorf("dump index: %w", err)
	}
	return file.Close()
}

// clampPages keeps the session budget within [minPages, maxPages].
func clampPages(n int) int {
	if n < minPages {
		return minPages
	}
	if n > maxPages {
		return maxPages
	}
	return n
}

func splitSeeds(raw string) []string {
	var seeds []string
	for _, seed := range strings.Split(raw, ",") {
		if seed = strings.TrimSpace(seed); seed != "" {
			seeds = append(seeds, seed)
		}
	}
	return seeds
}
