package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

const (
	// DefaultBaseURL is the national OCDS releases endpoint.
	DefaultBaseURL = "https://ocds-api.etenders.gov.za/api/OCDSReleases"

	maxAttempts = 3

	// Leave the last stretch of the five-minute budget for a clean
	// handoff rather than risking a half-written page.
	runBudget   = 5 * time.Minute
	safeElapsed = 260 * time.Second

	concurrentPages = 3
)

var (
	retryDelays     = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	rateLimitDelays = []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}
)

// errNoSuchPage marks a 404: the crawl has walked off the end.
var errNoSuchPage = errors.New("no such page")

// State is the crawl position handed to a continuation invocation.
type State struct {
	StartPage   int   `json:"startPage"`
	TotalSaved  int   `json:"totalSaved"`
	FailedPages []int `json:"failedPages,omitempty"`
}

// Summary reports one invocation's work.
type Summary struct {
	PagesSaved  int    `json:"pagesSaved"`
	TotalSaved  int    `json:"totalSaved"`
	FailedPages []int  `json:"failedPages,omitempty"`
	Continued   bool   `json:"continued"`
	NextState   *State `json:"nextState,omitempty"`
}

// Invoker starts an asynchronous continuation run. Implementations must
// return before the continuation completes.
type Invoker interface {
	Invoke(ctx context.Context, state State) error
}

// Fetcher crawls the paginated OCDS API, persisting each raw page to the
// object store and enqueueing an ingest event for it.
type Fetcher struct {
	BaseURL    string
	PageSize   int
	MaxPages   int
	DateFrom   string
	DateTo     string
	Concurrent bool

	Client  *http.Client
	Store   blob.Store
	Bucket  string
	Queue   queue.Producer
	Limiter *rate.Limiter
	Invoker Invoker
	Log     zerolog.Logger

	// SafeElapsed overrides the continuation threshold; zero means the
	// default.
	SafeElapsed time.Duration

	// Sleep and Now are swappable in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (f *Fetcher) safeElapsed() time.Duration {
	if f.SafeElapsed != 0 {
		return f.SafeElapsed
	}
	return safeElapsed
}

func (f *Fetcher) baseURL() string {
	if f.BaseURL == "" {
		return DefaultBaseURL
	}
	return f.BaseURL
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep != nil {
		return f.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Run crawls pages from state.StartPage up to MaxPages. Near the runtime
// ceiling it invokes itself asynchronously with the remaining state and
// returns a continuation summary instead of starting another page.
func (f *Fetcher) Run(ctx context.Context, state State) (*Summary, error) {
	start := f.now()
	page := state.StartPage
	if page < 1 {
		page = 1
	}

	summary := &Summary{
		TotalSaved:  state.TotalSaved,
		FailedPages: append([]int(nil), state.FailedPages...),
	}

	for page <= f.MaxPages {
		if f.now().Sub(start) >= f.safeElapsed() {
			next := State{StartPage: page, TotalSaved: summary.TotalSaved, FailedPages: summary.FailedPages}
			if f.Invoker != nil {
				if err := f.Invoker.Invoke(ctx, next); err != nil {
					return summary, fmt.Errorf("continuation: %w", err)
				}
			}
			summary.Continued = true
			summary.NextState = &next
			f.Log.Info().Int("next_page", page).Msg("budget nearly spent, continuing in a new invocation")
			return summary, nil
		}

		if f.Concurrent {
			done, err := f.runConcurrent(ctx, page, summary)
			if err != nil {
				return summary, err
			}
			if done {
				break
			}
			page += concurrentPages
			continue
		}

		err := f.fetchAndSave(ctx, page)
		if errors.Is(err, errNoSuchPage) {
			break
		}
		if err != nil {
			if isTransient(err) {
				f.Log.Error().Err(err).Int("page", page).Msg("page failed after retries")
				summary.FailedPages = append(summary.FailedPages, page)
				page++
				continue
			}
			return summary, err
		}

		summary.PagesSaved++
		summary.TotalSaved++
		page++
	}

	return summary, nil
}

// runConcurrent fetches up to three pages at once with all-settled
// semantics: one failed page never sinks its siblings. Returns done=true
// once any page reports 404.
func (f *Fetcher) runConcurrent(ctx context.Context, startPage int, summary *Summary) (bool, error) {
	n := concurrentPages
	if startPage+n-1 > f.MaxPages {
		n = f.MaxPages - startPage + 1
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		done  bool
		fatal error
	)
	for i := 0; i < n; i++ {
		page := startPage + i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.fetchAndSave(ctx, page)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.PagesSaved++
				summary.TotalSaved++
			case errors.Is(err, errNoSuchPage):
				done = true
			case isTransient(err):
				f.Log.Error().Err(err).Int("page", page).Msg("page failed after retries")
				summary.FailedPages = append(summary.FailedPages, page)
			default:
				if fatal == nil {
					fatal = err
				}
			}
		}()
	}
	wg.Wait()

	sort.Ints(summary.FailedPages)
	return done, fatal
}

// fetchAndSave retrieves one page with retry/backoff, persists the raw
// body and enqueues the object-created event.
func (f *Fetcher) fetchAndSave(ctx context.Context, page int) error {
	body, err := f.fetchPage(ctx, page)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("etenders/etenders-p%04d-%d.json", page, f.now().UnixMilli())
	metadata := map[string]string{
		"page":      fmt.Sprintf("%d", page),
		"timestamp": fmt.Sprintf("%d", f.now().UnixMilli()),
	}
	if err := f.Store.Put(ctx, key, body, metadata); err != nil {
		return fmt.Errorf("persist page %d: %w", page, err)
	}

	event, err := queue.NewEnvelope(f.Bucket, key)
	if err != nil {
		return fmt.Errorf("envelope page %d: %w", page, err)
	}
	if err := f.Queue.Enqueue(ctx, event); err != nil {
		return fmt.Errorf("enqueue page %d: %w", page, err)
	}

	f.Log.Info().Int("page", page).Str("key", key).Msg("page saved")
	return nil
}

func (f *Fetcher) fetchPage(ctx context.Context, page int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := f.doRequest(ctx, page)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, errNoSuchPage) || !isTransient(err) {
			return nil, err
		}
		lastErr = err

		delays := retryDelays
		if isRateLimited(err) {
			delays = rateLimitDelays
		}
		if attempt < maxAttempts-1 {
			f.Log.Warn().Err(err).Int("page", page).Int("attempt", attempt+1).Msg("retrying page")
			if serr := f.sleep(ctx, delays[attempt]); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, &transientError{fmt.Errorf("page %d: %w", page, lastErr)}
}

func (f *Fetcher) doRequest(ctx context.Context, page int) ([]byte, error) {
	url := fmt.Sprintf("%s?PageNumber=%d&PageSize=%d&dateFrom=%s&dateTo=%s",
		f.baseURL(), page, f.PageSize, f.DateFrom, f.DateTo)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &transientError{fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &transientError{fmt.Errorf("read body: %w", err)}
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNoSuchPage
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &rateLimitError{fmt.Errorf("rate limited on page %d", page)}
	case resp.StatusCode >= 500:
		return nil, &transientError{fmt.Errorf("status code %d", resp.StatusCode)}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	var re *rateLimitError
	if errors.As(err, &te) || errors.As(err, &re) {
		return true
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return true
	}
	return false
}

func isRateLimited(err error) bool {
	var re *rateLimitError
	return errors.As(err, &re)
}

// GoInvoker runs the continuation in a goroutine with a fresh budget; the
// in-process stand-in for an async lambda-style self-invoke.
type GoInvoker struct {
	Fetcher *Fetcher
	WG      sync.WaitGroup
}

func (g *GoInvoker) Invoke(ctx context.Context, state State) error {
	g.WG.Add(1)
	go func() {
		defer g.WG.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), runBudget)
		defer cancel()
		if _, err := g.Fetcher.Run(runCtx, state); err != nil {
			g.Fetcher.Log.Error().Err(err).Msg("continuation run failed")
		}
	}()
	return nil
}
