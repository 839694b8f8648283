package collector

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// DefaultCrawlDelay applies when robots.txt does not set one.
const DefaultCrawlDelay = time.Second

// RobotsPolicy holds the exclusion rules that apply to one authority.
type RobotsPolicy struct {
	patterns []*regexp.Regexp
	delay    time.Duration
}

// AllowAll returns a policy with no disallowed paths and the default delay.
func AllowAll() *RobotsPolicy {
	return &RobotsPolicy{delay: DefaultCrawlDelay}
}

// ParseRobots reads a robots.txt stream and keeps the rules listed under the
// wildcard agent or agent. Reading stops at the first User-agent line that
// follows an applicable block.
func ParseRobots(r io.Reader, agent string) (*RobotsPolicy, error) {
	policy := AllowAll()
	seen := map[string]bool{}

	applies := false
	inRules := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := robotsLine(scanner.Text())
		if !ok {
			continue
		}

		switch key {
		case "user-agent":
			// A User-agent line after rules starts a new group.
			if inRules {
				if applies {
					return policy, nil
				}
				inRules = false
			}
			if value == "*" || strings.EqualFold(value, agent) {
				applies = true
			}
		case "disallow":
			inRules = true
			if !applies || value == "" || seen[value] {
				continue
			}
			re, err := regexp.Compile(robotsPattern(value))
			if err != nil {
				return nil, xerrors.Errorf("robots pattern %q: %w", value, err)
			}
			seen[value] = true
			policy.patterns = append(policy.patterns, re)
		case "crawl-delay":
			inRules = true
			if !applies {
				continue
			}
			if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
				policy.delay = time.Duration(seconds) * time.Second
			}
		default:
			inRules = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("read robots: %w", err)
	}
	return policy, nil
}

// robotsLine splits "Key: value" with the key lower-cased and comments removed.
func robotsLine(line string) (key, value string, ok bool) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:i]))
	value = strings.TrimSpace(line[i+1:])
	return key, value, key != ""
}

// robotsPattern anchors a Disallow value at the start of the path and turns
// each * into a lazy wildcard. Everything else matches literally.
func robotsPattern(value string) string {
	parts := strings.Split(value, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return "^" + strings.Join(parts, ".*?")
}

// IsAllowed reports whether path (with its query) matches no disallow rule.
func (p *RobotsPolicy) IsAllowed(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, re := range p.patterns {
		if re.MatchString(path) {
			return false
		}
	}
	return true
}

func (p *RobotsPolicy) CrawlDelay() time.Duration {
	return p.delay
}

// Patterns returns the compiled disallow expressions in file order.
func (p *RobotsPolicy) Patterns() []string {
	out := make([]string, 0, len(p.patterns))
	for _, re := range p.patterns {
		out = append(out, re.String())
	}
	return out
}
