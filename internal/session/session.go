package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/opennewsroom/storyreel/internal/domain"
	"github.com/opennewsroom/storyreel/pkg/logger"
)

// State is the playback state of the current item.
type State string

const (
	// StateLoading means a video item is waiting for its metadata; the
	// progress timer has not started yet. Image items never enter it.
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateClosed  State = "closed"
)

var (
	ErrNothingToPlay   = errors.New("nothing to play")
	ErrIndexOutOfRange = errors.New("start index out of range")
)

type Config struct {
	ImageDuration  time.Duration
	ProgressTicks  int
	SwipeThreshold float64
}

func (c Config) withDefaults() Config {
	if c.ImageDuration <= 0 {
		c.ImageDuration = 5 * time.Second
	}
	if c.ProgressTicks <= 0 {
		c.ProgressTicks = 50
	}
	if c.SwipeThreshold <= 0 {
		c.SwipeThreshold = 50
	}
	return c
}

// Session presents an immutable snapshot of story items one at a time:
// it auto-advances on a progress timer, supports tap-to-pause, manual
// prev/next and swipe deltas, and records at most one view per item per
// open. All transitions run under one mutex, so a second trigger only
// lands after the previous one has settled.
type Session struct {
	ID string

	cfg    Config
	logger logger.Logger
	clock  clockwork.Clock
	views  ViewRecorder

	mu         sync.Mutex
	items      []domain.StoryItem
	index      int
	state      State
	progress   int
	duration   time.Duration
	counted    map[uuid.UUID]struct{}
	timerGen   int
	cancelTick func()
	lastActive time.Time
	onClose    func()
}

type Opts struct {
	Items      []domain.StoryItem
	StartIndex int
	Config     Config
	Logger     logger.Logger
	Clock      clockwork.Clock
	Views      ViewRecorder
	OnClose    func()
}

func New(opts Opts) (*Session, error) {
	if len(opts.Items) == 0 {
		return nil, ErrNothingToPlay
	}
	if opts.StartIndex < 0 || opts.StartIndex >= len(opts.Items) {
		return nil, ErrIndexOutOfRange
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	items := make([]domain.StoryItem, len(opts.Items))
	copy(items, opts.Items)

	s := &Session{
		ID:      uuid.NewString(),
		cfg:     opts.Config.withDefaults(),
		logger:  opts.Logger,
		clock:   opts.Clock,
		views:   opts.Views,
		items:   items,
		counted: make(map[uuid.UUID]struct{}),
		onClose: opts.OnClose,
	}

	s.mu.Lock()
	s.lastActive = s.clock.Now()
	s.enterItem(opts.StartIndex, 1)
	closed := s.state == StateClosed
	s.mu.Unlock()

	if closed {
		return nil, ErrNothingToPlay
	}
	return s, nil
}

// HandleTap toggles pause/resume. Progress is preserved across the
// pause; resuming never resets or recounts anything.
func (s *Session) HandleTap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
	s.togglePause()
}

// HandleTouch processes a horizontal touch delta in logical pixels.
// Deltas at or past the threshold advance (positive) or retreat
// (negative); a delta of zero is a tap; anything else is a no-op.
func (s *Session) HandleTouch(deltaX float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
	if s.state == StateClosed {
		return
	}
	switch {
	case deltaX >= s.cfg.SwipeThreshold:
		s.advance()
	case deltaX <= -s.cfg.SwipeThreshold:
		s.retreat()
	case deltaX == 0:
		s.togglePause()
	}
}

func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
	s.advance()
}

func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
	s.retreat()
}

// OnMediaLoaded resolves the natural duration of the current video item
// and starts playback. A non-positive duration means the media is
// unplayable and the session skips forward instead.
func (s *Session) OnMediaLoaded(duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
	if s.state != StateLoading {
		return
	}
	if duration <= 0 {
		s.logger.Warn("Video reported unplayable duration, skipping", "story_id", s.items[s.index].ID)
		s.advance()
		return
	}
	s.duration = duration
	s.startPlaying()
}

// OnMediaEnded advances when the underlying video finishes before the
// progress timer does.
func (s *Session) OnMediaEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
	if s.state == StatePlaying {
		s.advance()
	}
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot is a point-in-time copy of the session state for clients.
type Snapshot struct {
	ID              string
	State           State
	Index           int
	Total           int
	ProgressPercent int
	DurationMS      int64
	Item            domain.StoryItem
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:              s.ID,
		State:           s.state,
		Index:           s.index,
		Total:           len(s.items),
		ProgressPercent: s.progress,
		DurationMS:      s.duration.Milliseconds(),
		Item:            s.items[s.index],
	}
}

// enterItem moves the cursor to index i, skipping unplayable items in
// the given direction. Every entry resets progress to zero. Walking off
// either end closes the session. Caller holds the mutex.
func (s *Session) enterItem(i, dir int) {
	s.stopTicker()
	for i >= 0 && i < len(s.items) && !s.items[i].HasMedia() {
		s.logger.Warn("Skipping story without resolvable media", "story_id", s.items[i].ID)
		i += dir
	}
	if i < 0 || i >= len(s.items) {
		s.close()
		return
	}

	s.index = i
	s.progress = 0

	if s.items[i].Kind() == domain.MediaKindVideo {
		s.state = StateLoading
		s.duration = 0
		return
	}
	s.duration = s.cfg.ImageDuration
	s.startPlaying()
}

func (s *Session) startPlaying() {
	s.state = StatePlaying
	s.recordView()
	s.startTicker()
}

// recordView marks the current item as counted and fires the async
// increment. The counted set keys on story ID, not cursor position, so
// retreating back to an item never recounts it.
func (s *Session) recordView() {
	item := s.items[s.index]
	if _, ok := s.counted[item.ID]; ok {
		return
	}
	s.counted[item.ID] = struct{}{}
	if s.views == nil {
		return
	}
	id := item.ID
	s.views.Submit(id, func(count int) {
		s.patchViewCount(id, count)
	})
}

// patchViewCount applies the authoritative count to the session's own
// snapshot only; the feed's copy catches up on its next load.
func (s *Session) patchViewCount(id uuid.UUID, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].ViewCount = count
			return
		}
	}
}

func (s *Session) togglePause() {
	switch s.state {
	case StatePlaying:
		s.state = StatePaused
		s.stopTicker()
	case StatePaused:
		s.state = StatePlaying
		s.startTicker()
	}
}

func (s *Session) advance() {
	if s.state == StateClosed {
		return
	}
	if s.index >= len(s.items)-1 {
		s.close()
		return
	}
	s.enterItem(s.index+1, 1)
}

func (s *Session) retreat() {
	if s.state == StateClosed {
		return
	}
	if s.index == 0 {
		s.close()
		return
	}
	s.enterItem(s.index-1, -1)
}

func (s *Session) close() {
	if s.state == StateClosed {
		return
	}
	s.stopTicker()
	s.state = StateClosed
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
}

// startTicker begins the progress cadence for the resolved duration:
// ProgressTicks ticks spread across the duration, each adding an equal
// step. The generation counter fences the ticker goroutine so a stale
// tick can never mutate state after a transition or close.
func (s *Session) startTicker() {
	s.timerGen++
	gen := s.timerGen

	interval := s.duration / time.Duration(s.cfg.ProgressTicks)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := s.clock.NewTicker(interval)
	quit := make(chan struct{})
	s.cancelTick = func() {
		ticker.Stop()
		close(quit)
	}

	go func() {
		for {
			select {
			case <-quit:
				return
			case <-ticker.Chan():
				if !s.tick(gen) {
					return
				}
			}
		}
	}()
}

// stopTicker invalidates the current timer generation and cancels the
// ticker goroutine. Called on every transition and on close so no timer
// outlives the item it was started for. Caller holds the mutex.
func (s *Session) stopTicker() {
	s.timerGen++
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
}

// tick applies one progress step. Returns false once this goroutine's
// generation is stale and it should exit.
func (s *Session) tick(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.state != StatePlaying {
		return false
	}

	step := 100 / s.cfg.ProgressTicks
	if step < 1 {
		step = 1
	}
	s.progress += step
	if s.progress >= 100 {
		s.progress = 100
		s.advance()
	}

	return gen == s.timerGen && s.state == StatePlaying
}
