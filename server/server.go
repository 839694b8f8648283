// Package server exposes a read-only JSON API for querying a registry.
package server

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"webcrawler/analysis"
	"webcrawler/registry"
	"webcrawler/searcher"
)

const (
	searchEndpoint     = "/search"
	booleanEndpoint    = "/search/boolean"
	documentEndpoint   = "/documents/{id:[0-9]+}"
	duplicatesEndpoint = "/documents/{id:[0-9]+}/duplicates"
	statsEndpoint      = "/stats"

	defaultDuplicateThreshold = 0.5
	shutdownTimeout           = 5 * time.Second
)

// Config encapsulates the settings for configuring the query service.
type Config struct {
	// The registry to answer queries from.
	Registry *registry.Registry

	// The analyzer used to reduce query text. It must match the one used
	// while crawling.
	Analyzer *analysis.Analyzer

	// The address to listen for incoming requests.
	ListenAddr string

	// The number of ranked results returned when a request does not ask
	// for a specific amount. Defaults to searcher.DefaultMaxResults.
	DefaultMaxResults int

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, xerrors.Errorf("listen address has not been specified"))
	}
	if cfg.Registry == nil {
		err = multierror.Append(err, xerrors.Errorf("registry has not been provided"))
	}
	if cfg.Analyzer == nil {
		err = multierror.Append(err, xerrors.Errorf("analyzer has not been provided"))
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = searcher.DefaultMaxResults
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: ioutil.Discard})
	}
	return err
}

// Service serves search and document lookups over HTTP.
type Service struct {
	cfg      Config
	router   *mux.Router
	searcher *searcher.Searcher
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("query service: config validation failed: %w", err)
	}

	svc := &Service{
		cfg:      cfg,
		router:   mux.NewRouter(),
		searcher: searcher.NewSearcher(cfg.Registry, cfg.Analyzer, cfg.Logger),
	}

	svc.router.HandleFunc(searchEndpoint, svc.renderSearch).Methods(http.MethodGet)
	svc.router.HandleFunc(booleanEndpoint, svc.renderBoolean).Methods(http.MethodGet)
	svc.router.HandleFunc(documentEndpoint, svc.renderDocument).Methods(http.MethodGet)
	svc.router.HandleFunc(duplicatesEndpoint, svc.renderDuplicates).Methods(http.MethodGet)
	svc.router.HandleFunc(statsEndpoint, svc.renderStats).Methods(http.MethodGet)
	svc.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		svc.renderError(w, http.StatusNotFound, "not found")
	})
	return svc, nil
}

func (svc *Service) Name() string { return "query-api" }

// ServeHTTP lets the service be mounted or tested without a listener.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:    svc.cfg.ListenAddr,
		Handler: svc.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	svc.cfg.Logger.WithField("addr", l.Addr().String()).Info("listening for incoming requests")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		err = nil
	}
	return err
}

type rankedHit struct {
	ID      int     `json:"id"`
	Address string  `json:"address"`
	Score   float64 `json:"score"`
}

type booleanHit struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
}

func (svc *Service) renderSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		svc.renderError(w, http.StatusBadRequest, "missing query")
		return
	}

	maxResults := svc.cfg.DefaultMaxResults
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			svc.renderError(w, http.StatusBadRequest, "invalid max")
			return
		}
		maxResults = n
	}

	usePageRank := false
	if raw := r.URL.Query().Get("pagerank"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			svc.renderError(w, http.StatusBadRequest, "invalid pagerank flag")
			return
		}
		usePageRank = b
	}

	hits := []rankedHit{}
	for _, res := range svc.searcher.Rank(query, maxResults, usePageRank) {
		hits = append(hits, rankedHit{ID: res.ID, Address: svc.address(res.ID), Score: res.Score})
	}
	svc.renderJSON(w, http.StatusOK, map[string]interface{}{
		"query":    query,
		"pagerank": usePageRank,
		"results":  hits,
	})
}

func (svc *Service) renderBoolean(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		svc.renderError(w, http.StatusBadRequest, "missing query")
		return
	}

	hits := []booleanHit{}
	for _, id := range svc.searcher.Search(query) {
		hits = append(hits, booleanHit{ID: id, Address: svc.address(id)})
	}
	svc.renderJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": hits,
	})
}

func (svc *Service) renderDocument(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	doc, err := svc.cfg.Registry.Document(id)
	if err != nil {
		svc.renderLookupError(w, err)
		return
	}
	rank, _ := svc.cfg.Registry.PageRank(id)
	svc.renderJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"address":  doc.Address,
		"tokens":   doc.Tokens,
		"keywords": doc.Keywords,
		"links":    doc.Links,
		"pagerank": rank,
	})
}

func (svc *Service) renderDuplicates(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	threshold := defaultDuplicateThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 || t > 1 {
			svc.renderError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = t
	}

	matches, err := svc.cfg.Registry.Duplicates(id, threshold)
	if err != nil {
		svc.renderLookupError(w, err)
		return
	}
	if matches == nil {
		matches = []registry.Match{}
	}
	svc.renderJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"threshold": threshold,
		"matches":   matches,
	})
}

func (svc *Service) renderStats(w http.ResponseWriter, _ *http.Request) {
	idx := svc.cfg.Registry.Index()
	svc.renderJSON(w, http.StatusOK, map[string]interface{}{
		"documents": svc.cfg.Registry.Len(),
		"terms":     idx.TermCount(),
		"last_id":   svc.cfg.Registry.LastID(),
	})
}

func (svc *Service) address(id int) string {
	doc, err := svc.cfg.Registry.Document(id)
	if err != nil {
		return ""
	}
	return doc.Address
}

func (svc *Service) renderLookupError(w http.ResponseWriter, err error) {
	if xerrors.Is(err, registry.ErrNotFound) {
		svc.renderError(w, http.StatusNotFound, err.Error())
		return
	}
	svc.cfg.Logger.WithField("err", err).Error("document lookup failed")
	svc.renderError(w, http.StatusInternalServerError, "internal error")
}

func (svc *Service) renderError(w http.ResponseWriter, status int, msg string) {
	svc.renderJSON(w, status, map[string]string{"error": msg})
}

func (svc *Service) renderJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		svc.cfg.Logger.WithField("err", err).Error("failed to write response")
	}
}
