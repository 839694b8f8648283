package collector

import (
	"net/url"
	"strings"

	"golang.org/x/xerrors"
)

// ErrQueuesExhausted is returned when there is nothing left to transfer.
var ErrQueuesExhausted = xerrors.New("link queues exhausted")

// LinkQueue is a FIFO of URLs that holds each URL at most once.
type LinkQueue struct {
	backlog []string
	members map[string]struct{}
}

func NewLinkQueue(links ...string) *LinkQueue {
	q := &LinkQueue{members: map[string]struct{}{}}
	for _, link := range links {
		q.Push(link)
	}
	return q
}

// Push appends link unless it is already queued and reports whether it did.
func (q *LinkQueue) Push(link string) bool {
	if _, ok := q.members[link]; ok {
		return false
	}
	q.members[link] = struct{}{}
	q.backlog = append(q.backlog, link)
	return true
}

// Pop removes and returns the oldest link.
func (q *LinkQueue) Pop() (string, bool) {
	if len(q.backlog) == 0 {
		return "", false
	}
	link := q.backlog[0]
	q.backlog[0] = ""
	q.backlog = q.backlog[1:]
	delete(q.members, link)
	return link, true
}

func (q *LinkQueue) Len() int {
	return len(q.backlog)
}

func (q *LinkQueue) HasLink() bool {
	return len(q.backlog) > 0
}

func (q *LinkQueue) Contains(link string) bool {
	_, ok := q.members[link]
	return ok
}

// Drain empties the queue and returns its links in order.
func (q *LinkQueue) Drain() []string {
	return q.Overflow(0)
}

// Overflow keeps the first keep links and returns the rest in order.
func (q *LinkQueue) Overflow(keep int) []string {
	if keep < 0 {
		keep = 0
	}
	if len(q.backlog) <= keep {
		return nil
	}
	rest := append([]string(nil), q.backlog[keep:]...)
	q.backlog = append([]string(nil), q.backlog[:keep]...)
	for _, link := range rest {
		delete(q.members, link)
	}
	return rest
}

// Links returns a copy of the queued links in order.
func (q *LinkQueue) Links() []string {
	return append([]string(nil), q.backlog...)
}

// Authority returns the lower-cased scheme://host[:port] of rawURL.
func Authority(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", xerrors.Errorf("authority of %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", xerrors.Errorf("authority of %q: not an absolute url", rawURL)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// TransferAuthority takes the authority of the oldest link in global and
// moves up to capacity links of that authority into local, oldest first.
// Links of other authorities keep their order in global. Links without an
// authority are discarded on the way.
func TransferAuthority(global, local *LinkQueue, capacity int) (string, error) {
	if capacity <= 0 {
		capacity = 1
	}

	var authority string
	for authority == "" {
		link, ok := global.Pop()
		if !ok {
			return "", ErrQueuesExhausted
		}
		if a, err := Authority(link); err == nil {
			authority = a
			local.Push(link)
		}
	}

	moved := 1
	kept := make([]string, 0, global.Len())
	for _, link := range global.Drain() {
		a, err := Authority(link)
		if err != nil {
			continue
		}
		if a == authority && moved < capacity && !local.Contains(link) {
			local.Push(link)
			moved++
			continue
		}
		kept = append(kept, link)
	}
	for _, link := range kept {
		global.Push(link)
	}
	return authority, nil
}
