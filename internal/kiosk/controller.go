// Package kiosk runs the entrance terminal: it turns reader input into
// access checks and holds the feedback screen and admin session.
package kiosk

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/cardid"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// Phase is the position in the tap cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProcessing
	PhaseFeedback
)

func (p Phase) String() string {
	switch p {
	case PhaseProcessing:
		return "PROCESSING"
	case PhaseFeedback:
		return "FEEDBACK"
	default:
		return "IDLE"
	}
}

// Mode is orthogonal to Phase: an admin session survives any number of
// tap cycles.
type Mode int

const (
	ModeLocked Mode = iota
	ModeAdmin
)

func (m Mode) String() string {
	if m == ModeAdmin {
		return "ADMIN"
	}
	return "LOCKED"
}

const (
	msgOffline     = "offline, ask staff"
	msgUnreachable = "server unreachable, tap again"
	msgDuplicate   = "already read, please wait"
)

// Checker submits one normalized card uid to the access server.
type Checker interface {
	Check(ctx context.Context, cardUID string) (types.CheckResponse, error)
}

// Display shows controller state. Render is called with the controller
// lock held and must not call back into the Controller.
type Display interface {
	Render(State)
}

// State is a point-in-time view of the controller.
type State struct {
	Phase          Phase
	Mode           Mode
	Online         bool
	CardUID        string
	Result         types.ResultCode
	Message        string
	MemberName     string
	AdminRemaining time.Duration
}

type Config struct {
	Debounce          time.Duration
	Feedback          time.Duration
	DuplicateFeedback time.Duration
	AdminSession      time.Duration
	RequestTimeout    time.Duration

	Clock  clock.Clock
	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 2 * time.Second
	}
	if c.Feedback <= 0 {
		c.Feedback = 2500 * time.Millisecond
	}
	if c.DuplicateFeedback <= 0 {
		c.DuplicateFeedback = 4 * time.Second
	}
	if c.AdminSession <= 0 {
		c.AdminSession = 5 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 4 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Controller is the terminal session state machine. Every timer it owns
// runs on cfg.Clock.
type Controller struct {
	cfg     Config
	checker Checker
	display Display

	mu     sync.Mutex
	phase  Phase
	mode   Mode
	online bool
	buffer strings.Builder
	screen State

	lastUID   string
	lastTapAt time.Time

	// feedbackGen and adminGen invalidate timers that were replaced
	// after they had already been collected for firing.
	feedbackGen   uint64
	feedbackTimer *clock.Timer
	adminGen      uint64
	adminTimer    *clock.Timer
	adminDeadline time.Time
}

func NewController(checker Checker, display Display, cfg Config) *Controller {
	c := &Controller{
		cfg:     cfg.withDefaults(),
		checker: checker,
		display: display,
		online:  true,
	}
	c.renderLocked()
	return c
}

// Input accepts raw reader bytes. Each completed line is one tap;
// partial input is discarded when a feedback screen ends.
func (c *Controller) Input(ctx context.Context, chunk string) {
	var lines []string
	c.mu.Lock()
	for _, r := range chunk {
		if r != '\n' && r != '\r' {
			c.buffer.WriteRune(r)
			continue
		}
		if line := c.buffer.String(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
		c.buffer.Reset()
	}
	c.mu.Unlock()

	for _, line := range lines {
		c.Tap(ctx, line)
	}
}

// Tap runs one tap cycle and blocks until the server answers or the
// request times out. Taps arriving while another is in flight are
// dropped.
func (c *Controller) Tap(ctx context.Context, raw string) {
	uid := cardid.Normalize(raw)
	if uid == "" {
		return
	}
	c.cfg.Logger.Printf("tap uid=%s rules=%v", uid, cardid.Rule(raw))

	c.mu.Lock()
	if c.phase == PhaseProcessing {
		c.mu.Unlock()
		c.cfg.Logger.Printf("tap dropped, request in flight")
		return
	}

	now := c.cfg.Clock.Now()
	if uid == c.lastUID && now.Sub(c.lastTapAt) < c.cfg.Debounce {
		c.feedbackLocked(uid, types.CheckResponse{
			Result:  types.ResultIgnoredDuplicateTap,
			Message: msgDuplicate,
		}, c.cfg.DuplicateFeedback)
		c.mu.Unlock()
		return
	}

	if !c.online {
		c.feedbackLocked(uid, types.CheckResponse{Result: types.ResultError, Message: msgOffline}, c.cfg.Feedback)
		c.mu.Unlock()
		return
	}

	c.lastUID = uid
	c.lastTapAt = now
	c.phase = PhaseProcessing
	c.stopFeedbackLocked()
	c.screen = State{CardUID: uid}
	c.renderLocked()
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	resp, err := c.checker.Check(reqCtx, uid)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.cfg.Logger.Printf("access check failed: %v", err)
		resp = types.CheckResponse{Result: types.ResultError, Message: msgUnreachable}
	}
	if resp.Result == types.ResultError || !resp.Result.Valid() {
		// A failed tap must not block an immediate retry.
		c.lastUID = ""
		if !resp.Result.Valid() {
			resp = types.CheckResponse{Result: types.ResultError, Message: msgUnreachable}
		}
	}
	if resp.Result == types.ResultSuperAdmin {
		c.enterAdminLocked()
	}
	c.feedbackLocked(uid, resp, c.cfg.Feedback)
}

// Lock ends an admin session. It is a no-op in LOCKED mode.
func (c *Controller) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeAdmin {
		return
	}
	c.exitAdminLocked("locked by staff")
}

// SetOnline records the connectivity monitor's verdict. While offline
// every tap resolves locally to ERROR.
func (c *Controller) SetOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online == online {
		return
	}
	c.online = online
	if online {
		c.cfg.Logger.Printf("server reachable, resuming")
	} else {
		c.cfg.Logger.Printf("server unreachable, taps answered locally")
	}
	c.renderLocked()
}

// Refresh re-renders the current screen, e.g. to tick the admin
// countdown.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderLocked()
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := c.screen
	s.Phase = c.phase
	s.Mode = c.mode
	s.Online = c.online
	if c.mode == ModeAdmin {
		if left := c.adminDeadline.Sub(c.cfg.Clock.Now()); left > 0 {
			s.AdminRemaining = left
		}
	}
	return s
}

func (c *Controller) renderLocked() {
	if c.display != nil {
		c.display.Render(c.stateLocked())
	}
}

func (c *Controller) feedbackLocked(uid string, resp types.CheckResponse, hold time.Duration) {
	c.stopFeedbackLocked()
	c.phase = PhaseFeedback
	c.screen = State{
		CardUID:    uid,
		Result:     resp.Result,
		Message:    resp.Message,
		MemberName: resp.MemberName,
	}
	c.renderLocked()

	c.feedbackGen++
	gen := c.feedbackGen
	c.feedbackTimer = c.cfg.Clock.AfterFunc(hold, func() { c.endFeedback(gen) })
}

func (c *Controller) stopFeedbackLocked() {
	if c.feedbackTimer != nil {
		c.feedbackTimer.Stop()
		c.feedbackTimer = nil
	}
	c.feedbackGen++
}

func (c *Controller) endFeedback(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.feedbackGen || c.phase != PhaseFeedback {
		return
	}
	c.phase = PhaseIdle
	c.feedbackTimer = nil
	c.buffer.Reset()
	c.screen = State{}
	c.renderLocked()
}

// enterAdminLocked starts or restarts the admin countdown.
// enterAdminLocked starts the admin countdown. A session already running
// keeps its deadline.
func (c *Controller) enterAdminLocked() {
	if c.mode == ModeAdmin {
		return
	}
	c.cfg.Logger.Printf("admin session started for %s", c.cfg.AdminSession)
	c.mode = ModeAdmin
	c.adminDeadline = c.cfg.Clock.Now().Add(c.cfg.AdminSession)
	c.adminGen++
	gen := c.adminGen
	c.adminTimer = c.cfg.Clock.AfterFunc(c.cfg.AdminSession, func() { c.expireAdmin(gen) })
}

func (c *Controller) expireAdmin(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.adminGen || c.mode != ModeAdmin {
		return
	}
	c.exitAdminLocked("admin session timed out")
}

func (c *Controller) exitAdminLocked(why string) {
	if c.adminTimer != nil {
		c.adminTimer.Stop()
		c.adminTimer = nil
	}
	c.adminGen++
	c.mode = ModeLocked
	c.adminDeadline = time.Time{}
	c.cfg.Logger.Printf("%s", why)
	c.renderLocked()
}
