// Package scan drives one mailbox scan: list candidate messages,
// fetch and parse each one, deduplicate, and aggregate meal-swipe
// usage against the current quota week.
package scan

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/NickJuneau/mealmate-v2-web/internal/extract"
	"github.com/NickJuneau/mealmate-v2-web/internal/message"
	"github.com/NickJuneau/mealmate-v2-web/internal/quota"
	"github.com/NickJuneau/mealmate-v2-web/internal/vendor"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MailSource is the narrow slice of a mail provider the scanner
// needs: search for candidate ids, fetch one message's content.
type MailSource interface {
	Search(ctx context.Context, query string, limit int64) ([]string, error)
	Fetch(ctx context.Context, id string) (*message.Raw, error)
}

const (
	// DefaultConcurrency bounds parallel message fetches.
	DefaultConcurrency = 4

	defaultDays       = 7
	defaultMaxResults = 250
)

// Options control one scan invocation. Zero values take the defaults
// above. Debug only adds logging; it never alters the returned data.
type Options struct {
	Days       int
	MaxResults int64
	IgnoreWeek bool
	Debug      bool
}

// Scanner runs scans against one mailbox. It holds no per-scan state,
// so concurrent Scan calls do not interfere.
type Scanner struct {
	src         MailSource
	profile     vendor.Profile
	resetDay    time.Weekday
	concurrency int
	now         func() time.Time
}

// New returns a Scanner for src using the given vendor profile and
// quota reset weekday. concurrency <= 0 selects DefaultConcurrency.
func New(src MailSource, profile vendor.Profile, resetDay time.Weekday, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{
		src:         src,
		profile:     profile,
		resetDay:    resetDay,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Scan runs one pass over the mailbox and aggregates the result. A
// failing or unreachable mail source fails the whole call; a fetch or
// parse problem on an individual message only drops that message.
// Cancelling ctx aborts outstanding fetches and returns the context
// error.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*message.ScanResult, error) {
	if opts.Days <= 0 {
		opts.Days = defaultDays
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}

	now := s.now()
	weekStart := quota.WeekStart(now, s.resetDay)
	oldest := now.Add(-time.Duration(opts.Days) * 24 * time.Hour)
	scanID := uuid.NewString()[:8]

	query := s.profile.Query(opts.Days)
	if opts.Debug {
		log.Printf("[scan %s] %s query: %s", scanID, s.profile.Name, query)
	}

	ids, err := s.src.Search(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, errors.Wrap(err, "mail source search failed")
	}
	if opts.Debug {
		log.Printf("[scan %s] found %d candidate %s messages", scanID, len(ids), s.profile.Name)
	}

	var (
		mu         sync.Mutex
		seen       = make(map[string]bool)
		events     []message.SwipeEvent
		discarded  int
		duplicates int
	)

	grp, gctx := errgroup.WithContext(ctx)
	idCh := make(chan string)
	grp.Go(func() error {
		defer close(idCh)
		for _, id := range ids {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case idCh <- id:
			}
		}
		return nil
	})
	for i := 0; i < s.concurrency; i++ {
		grp.Go(func() error {
			for id := range idCh {
				ev, ok := s.inspect(gctx, scanID, id, oldest, weekStart, opts.Debug)
				if !ok {
					if err := gctx.Err(); err != nil {
						return err
					}
					mu.Lock()
					discarded++
					mu.Unlock()
					continue
				}

				// Dedup key: order id when the vendor supplied one,
				// else the message id. Check-then-insert stays under
				// one lock so racing workers cannot both win.
				key := ev.OrderID
				if key == "" {
					key = ev.MessageID
				}
				mu.Lock()
				if seen[key] {
					duplicates++
					mu.Unlock()
					continue
				}
				seen[key] = true
				events = append(events, ev)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, errors.Wrap(err, "scan aborted")
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].MessageID < events[j].MessageID
	})

	usedRecent, usedInWeek := 0, 0
	var weekEvents []message.SwipeEvent
	for _, ev := range events {
		usedRecent += ev.Meals
		if ev.InWeek {
			usedInWeek += ev.Meals
			weekEvents = append(weekEvents, ev)
		}
	}
	if opts.Debug {
		log.Printf("[scan %s] done; %d events, %d duplicates dropped, %d messages contributed nothing",
			scanID, len(events), duplicates, discarded)
	}

	res := &message.ScanResult{
		WeekStart:        weekStart,
		UsedRecent:       usedRecent,
		TotalFoundRecent: len(events),
	}
	if opts.IgnoreWeek {
		res.Used = usedRecent
		res.Events = events
	} else {
		res.Used = usedInWeek
		res.Events = weekEvents
	}
	return res, nil
}

// inspect fetches and parses one message. ok is false when the
// message contributes nothing: fetch failure, missing receipt time,
// outside the day bound, no recoverable meal count, or implausible
// provenance.
func (s *Scanner) inspect(ctx context.Context, scanID, id string, oldest, weekStart time.Time, debug bool) (message.SwipeEvent, bool) {
	var none message.SwipeEvent

	raw, err := s.src.Fetch(ctx, id)
	if err != nil {
		log.Printf("[scan %s] Warning: fetching message %s failed; skipping: %v", scanID, id, err)
		return none, false
	}
	if raw.ReceivedAt.IsZero() {
		log.Printf("[scan %s] Warning: message %s has no receipt time; skipping", scanID, id)
		return none, false
	}
	// The search query carries its own recency bound, but the
	// source is not trusted to apply it precisely.
	if raw.ReceivedAt.Before(oldest) {
		return none, false
	}

	body := raw.Body
	if body == "" {
		body = raw.Snippet
	}
	parsed := extract.Parse(body)

	preview := raw.Snippet
	if preview == "" {
		preview = truncate(parsed.RawSnippet, 300)
	}

	if parsed.Meals < 1 || !s.profile.Plausible(raw.From, raw.Subject, preview) {
		if debug {
			log.Printf("[scan %s] inspected message %s: from=%q subject=%q meals=%d order=%q snippet=%q",
				scanID, id, raw.From, raw.Subject, parsed.Meals, parsed.OrderID, truncate(parsed.RawSnippet, 300))
		}
		return none, false
	}

	msgID := raw.ID
	if msgID == "" {
		msgID = id
	}
	return message.SwipeEvent{
		MessageID:  msgID,
		OrderID:    parsed.OrderID,
		OccurredAt: raw.ReceivedAt,
		Meals:      parsed.Meals,
		Store:      parsed.Store,
		Items:      parsed.Items,
		RawSnippet: parsed.RawSnippet,
		Subject:    raw.Subject,
		From:       raw.From,
		InWeek:     quota.InWindow(raw.ReceivedAt, weekStart),
	}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
