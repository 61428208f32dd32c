package checker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusRegistered
	StatusUnregistered
)

func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Result is the outcome for a single candidate number. It is produced fresh
// per batch and never persisted.
type Result struct {
	Number string
	Status Status
}

// Prober resolves the WhatsApp registration state of one normalized number.
// *whatsapp.Session satisfies it; tests substitute fakes.
type Prober interface {
	Lookup(ctx context.Context, number string) ([]whatsapp.Registration, error)
}

// Options are the tunables collapsed out of the copy-pasted source variants.
type Options struct {
	// GroupSize bounds how many lookups run concurrently.
	GroupSize int
	// GroupDelay paces consecutive groups to stay under rate limits.
	GroupDelay time.Duration
	// ProbeTimeout bounds a single lookup so a hung call cannot stall its
	// group forever.
	ProbeTimeout time.Duration
}

// Checker fans candidate numbers out to the prober in fixed-size groups.
type Checker struct {
	prober       Prober
	groupSize    int
	pacer        *rate.Limiter
	probeTimeout time.Duration
}

func New(prober Prober, opts Options) *Checker {
	groupSize := opts.GroupSize
	if groupSize < 1 {
		groupSize = 1
	}
	limit := rate.Inf
	if opts.GroupDelay > 0 {
		limit = rate.Every(opts.GroupDelay)
	}
	return &Checker{
		prober:       prober,
		groupSize:    groupSize,
		pacer:        rate.NewLimiter(limit, 1),
		probeTimeout: opts.ProbeTimeout,
	}
}

// Run checks every candidate and returns exactly one result per input, in
// input order. A lookup failure yields StatusUnknown for that candidate only;
// the batch itself never fails.
func (c *Checker) Run(ctx context.Context, numbers []string) []Result {
	results := make([]Result, len(numbers))

	for start := 0; start < len(numbers); start += c.groupSize {
		if err := c.pacer.Wait(ctx); err != nil {
			for i := start; i < len(numbers); i++ {
				results[i] = Result{Number: numbers[i], Status: StatusUnknown}
			}
			break
		}

		end := start + c.groupSize
		if end > len(numbers) {
			end = len(numbers)
		}

		var group errgroup.Group
		for i := start; i < end; i++ {
			i := i
			group.Go(func() error {
				results[i] = Result{
					Number: numbers[i],
					Status: c.checkOne(ctx, numbers[i]),
				}
				return nil
			})
		}
		_ = group.Wait()
	}

	return results
}

func (c *Checker) checkOne(ctx context.Context, number string) Status {
	if c.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.probeTimeout)
		defer cancel()
	}

	infos, err := c.prober.Lookup(ctx, number)
	if err != nil {
		return StatusUnknown
	}

	// An empty lookup response is indistinguishable from "not on WhatsApp"
	// with this call alone, so it counts as unregistered rather than
	// unknown.
	if len(infos) > 0 && infos[0].Registered {
		return StatusRegistered
	}
	return StatusUnregistered
}

// Summarize splits batch results into registered, unregistered, and failed
// number lists for the reply renderer.
func Summarize(results []Result) (registered []string, unregistered []string, failed []string) {
	for _, result := range results {
		switch result.Status {
		case StatusRegistered:
			registered = append(registered, result.Number)
		case StatusUnregistered:
			unregistered = append(unregistered, result.Number)
		default:
			failed = append(failed, result.Number)
		}
	}
	return registered, unregistered, failed
}
