package collector

import (
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/axiomhq/hyperloglog"
	"golang.org/x/xerrors"
)

// Report summarizes one crawl session.
type Report struct {
	SessionID          string                 `json:"session_id"`
	Seeds              []string               `json:"seeds"`
	PageBudget         int                    `json:"page_budget"`
	BeginTimestamp     time.Time              `json:"begin_timestamp"`
	EndTimestamp       time.Time              `json:"end_timestamp"`
	ExecutionInSeconds float64                `json:"execution_in_seconds"`
	PageRatePerSec     float64                `json:"page_rate_per_sec"`
	TotalPages         int                    `json:"total_pages"`
	SucceededPages     int                    `json:"succeeded_pages"`
	FailedPages        int                    `json:"failed_pages"`
	DisallowedPages    int                    `json:"disallowed_pages"`
	SkippedLinks       int                    `json:"skipped_links"`
	DistinctLinks      uint64                 `json:"distinct_links_estimate"`
	Authorities        map[string]int         `json:"authorities"`
	LocalQueue         int                    `json:"local_queue"`
	GlobalQueue        int                    `json:"global_queue"`
	Succeed            map[string]*Page       `json:"succeed"`
	Failed             map[string]*FailedPage `json:"failed"`

	links *hyperloglog.Sketch
}

func newReport(sessionID string, seeds []string, budget int, begin time.Time) *Report {
	return &Report{
		SessionID:      sessionID,
		Seeds:          seeds,
		PageBudget:     budget,
		BeginTimestamp: begin,
		Authorities:    map[string]int{},
		Succeed:        map[string]*Page{},
		Failed:         map[string]*FailedPage{},
		links:          hyperloglog.New14(),
	}
}

func (r *Report) succeeded(authority string, page *Page) {
	r.SucceededPages++
	r.Authorities[authority]++
	r.Succeed[page.URL] = page
	for _, link := range page.Links {
		r.links.Insert([]byte(link))
	}
}

func (r *Report) failed(page *FailedPage) {
	r.FailedPages++
	r.Failed[page.URL] = page
}

func (r *Report) finish(end time.Time, local, global int) {
	r.EndTimestamp = end
	r.ExecutionInSeconds = end.Sub(r.BeginTimestamp).Seconds()
	r.TotalPages = r.SucceededPages + r.FailedPages
	if r.ExecutionInSeconds > 0 {
		r.PageRatePerSec = float64(r.TotalPages) / r.ExecutionInSeconds
	}
	r.DistinctLinks = r.links.Estimate()
	r.LocalQueue = local
	r.GlobalQueue = global
}

// Save writes the report as indented JSON to path.
func (r *Report) Save(path string) error {
	file, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshal report: %w", err)
	}
	if err = ioutil.WriteFile(path, file, 0644); err != nil {
		return xerrors.Errorf("write report: %w", err)
	}
	return nil
}
