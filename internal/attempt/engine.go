package attempt

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSubmitInFlight is returned when a submit is requested while a previous
// one has not finished; the caller should simply wait for the first.
var ErrSubmitInFlight = errors.New("submit already in flight")

// ErrSubmitted is returned by Submit after a successful submission.
var ErrSubmitted = errors.New("attempt already submitted")

// Submitter delivers the collected answers to the server.
type Submitter interface {
	Submit(ctx context.Context, examID, studentID int64, answers map[int64]string) error
}

type Config struct {
	// Duration is the authoritative attempt window. The default is 90
	// minutes; callers may pass the exam's configured duration instead.
	Duration time.Duration
	// Tick is the countdown granularity; defaults to one second.
	Tick time.Duration
	// Clock exists for tests; defaults to time.Now.
	Clock func() time.Time
	// OnTick, when set, is called with the remaining time once per tick.
	OnTick func(remaining time.Duration)
}

const DefaultDuration = 90 * time.Minute

// Engine runs one student's timed attempt at one exam: the window is
// anchored to the first start, answer selections persist immediately, and
// expiry submits exactly once.
type Engine struct {
	examID    int64
	studentID int64
	store     Store
	submitter Submitter
	cfg       Config

	mu        sync.Mutex
	start     time.Time
	answers   map[int64]string
	inFlight  bool
	submitted bool
}

func NewEngine(examID, studentID int64, store Store, submitter Submitter, cfg Config) *Engine {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		examID:    examID,
		studentID: studentID,
		store:     store,
		submitter: submitter,
		cfg:       cfg,
		answers:   map[int64]string{},
	}
}

// Start loads persisted state. The start timestamp is recorded exactly once:
// a reload reuses the stored value, so the window never resets.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	answers, err := e.store.ReadAnswers(e.examID, e.studentID)
	if err != nil {
		return err
	}
	e.answers = answers

	unix, ok, err := e.store.ReadStart(e.examID, e.studentID)
	if err != nil {
		return err
	}
	if !ok {
		e.start = e.cfg.Clock()
		return e.store.WriteStart(e.examID, e.studentID, e.start.Unix())
	}
	e.start = time.Unix(unix, 0)
	return nil
}

// Remaining is Duration minus elapsed-since-first-start, floored at zero.
func (e *Engine) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	rem := e.cfg.Duration - e.cfg.Clock().Sub(e.start)
	if rem < 0 {
		return 0
	}
	return rem
}

// Select records an answer and persists the whole map immediately, so a
// reload restores every prior selection without contacting the server.
func (e *Engine) Select(questionID int64, option string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitted {
		return ErrSubmitted
	}
	e.answers[questionID] = option
	return e.store.WriteAnswers(e.examID, e.studentID, e.answers)
}

// Answers returns a copy of the current selections.
func (e *Engine) Answers() map[int64]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int64]string, len(e.answers))
	for k, v := range e.answers {
		out[k] = v
	}
	return out
}

func (e *Engine) Submitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitted
}

// Submit sends the answers once. Concurrent calls while one is outstanding
// get ErrSubmitInFlight instead of a duplicate request. On success the local
// state is purged; on failure it is kept so the student can retry.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.submitted {
		e.mu.Unlock()
		return ErrSubmitted
	}
	if e.inFlight {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	e.inFlight = true
	answers := make(map[int64]string, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	e.mu.Unlock()

	err := e.submitter.Submit(ctx, e.examID, e.studentID, answers)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
	if err != nil {
		return err
	}
	e.submitted = true
	return e.store.Purge(e.examID, e.studentID)
}

// Run drives the countdown. It returns nil once the attempt is submitted
// (by expiry or an external Submit), or ctx.Err() if the caller navigates
// away. When the window is already exhausted it submits immediately.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	for {
		rem := e.Remaining()
		if e.cfg.OnTick != nil {
			e.cfg.OnTick(rem)
		}
		if rem == 0 {
			err := e.Submit(ctx)
			switch {
			case err == nil, errors.Is(err, ErrSubmitted):
				return nil
			case errors.Is(err, ErrSubmitInFlight):
				// a manual submit is outstanding; keep ticking
			default:
				return err
			}
		}
		if e.Submitted() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
