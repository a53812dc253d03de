// Package wifi drives network association: the ordered join command
// sequence, the bounded status-polling loop that infers completion, and the
// one-time device bring-up around them.
package wifi

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/eswifictl/internal/command"
	"github.com/danmuck/eswifictl/internal/hal"
)

// State is the persisted connection state. There is no stored "connecting"
// state: association in progress is control flow inside Join, nothing more.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var (
	ErrConnectionFailed  = errors.New("wifi: device reported join failure")
	ErrConnectionTimeout = errors.New("wifi: association polling budget exhausted")
)

// Config bounds bring-up timing and the association polling loop.
type Config struct {
	// ResetPulse is how long the reset line is held asserted, and how long
	// the device is given to boot after release.
	ResetPulse time.Duration
	// WakeSettle is the delay after asserting the wake line.
	WakeSettle time.Duration
	// PromptAttempts bounds the post-reset greeting wait.
	PromptAttempts int
	// PollInterval and PollAttempts bound the association status loop.
	// The co-processor emits no asynchronous "associated" event over this
	// transport, so completion is inferred by polling.
	PollInterval time.Duration
	PollAttempts int
}

func DefaultConfig() Config {
	return Config{
		ResetPulse:     50 * time.Millisecond,
		WakeSettle:     50 * time.Millisecond,
		PromptAttempts: 1000,
		PollInterval:   500 * time.Millisecond,
		PollAttempts:   20,
	}
}

// Channel is the slice of the command layer the manager drives.
type Channel interface {
	Do(op command.Op, arg string) (command.Response, error)
	FetchPrompt(attempts int) (string, error)
}

// Manager owns the connection state machine. It mutates state only on a
// resolved join outcome and never attempts remote rollback: a failed join
// leaves whatever settings the device accepted in place, and the next join
// overwrites them idempotently. State is held atomically so a diagnostics
// goroutine may observe it while a join is in flight; everything else on
// the manager stays single-threaded.
type Manager struct {
	ch    Channel
	lines hal.ControlLines
	sleep hal.Sleeper
	cfg   Config
	state atomic.Int32
}

func NewManager(ch Channel, lines hal.ControlLines, sleep hal.Sleeper, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.ResetPulse <= 0 {
		cfg.ResetPulse = def.ResetPulse
	}
	if cfg.WakeSettle <= 0 {
		cfg.WakeSettle = def.WakeSettle
	}
	if cfg.PromptAttempts <= 0 {
		cfg.PromptAttempts = def.PromptAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = def.PollAttempts
	}
	return &Manager{ch: ch, lines: lines, sleep: sleep, cfg: cfg}
}

// State reports the persisted connection state. Safe to call from any
// goroutine.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Init resets and wakes the device, consumes the one-time greeting, quiets
// the firmware's verbose mode, and returns the firmware banner. A missing
// or truncated greeting is tolerated: some firmware revisions skip it.
func (m *Manager) Init() (string, error) {
	m.lines.Reset.Assert()
	m.sleep.Sleep(m.cfg.ResetPulse)
	m.lines.Reset.Deassert()
	m.sleep.Sleep(m.cfg.ResetPulse)

	m.lines.Wake.Assert()
	m.sleep.Sleep(m.cfg.WakeSettle)

	cursor, err := m.ch.FetchPrompt(m.cfg.PromptAttempts)
	if err != nil {
		log.Warn().Err(err).Str("cursor", cursor).Msg("greeting handshake incomplete")
	} else {
		log.Debug().Str("cursor", cursor).Msg("device greeting")
	}

	if _, err := m.ch.Do(command.OpSetVerbosity, command.VerbosityQuiet); err != nil {
		return "", fmt.Errorf("quiet verbosity: %w", err)
	}
	resp, err := m.ch.Do(command.OpGetVersion, "")
	if err != nil {
		return "", fmt.Errorf("read firmware banner: %w", err)
	}
	log.Info().Str("firmware", resp.Payload).Msg("device initialized")
	return resp.Payload, nil
}

// joinSteps is the fixed association sequence. Order matters to the
// firmware; the sequence is identical on every attempt.
func joinSteps(ssid, passphrase string) []struct {
	op  command.Op
	arg string
} {
	return []struct {
		op  command.Op
		arg string
	}{
		{command.OpDisconnect, ""},
		{command.OpSetSecurityMode, command.SecurityWPA2},
		{command.OpSetSSID, ssid},
		{command.OpSetPassphrase, passphrase},
		{command.OpSetEncryption, command.EncryptionWPA2},
		{command.OpConnect, ""},
	}
}

// Join negotiates association with the named network and returns the number
// of status polls it took to resolve. The first non-OK result or transport
// failure aborts the whole sequence with that error. After the connect
// command is accepted, Join polls the device status at a fixed interval and
// classifies the payload: a private-range IPv4 prefix means associated, the
// literal "Failed" means the device gave up, anything else is inconclusive.
// The heuristic is string matching because the firmware offers nothing
// better. State is mutated only when the join resolves, never on entry or
// mid-sequence.
func (m *Manager) Join(ssid, passphrase string) (int, error) {
	for _, step := range joinSteps(ssid, passphrase) {
		if _, err := m.ch.Do(step.op, step.arg); err != nil {
			m.setState(StateDisconnected)
			return 0, fmt.Errorf("join step %s: %w", step.op, err)
		}
	}

	for attempt := 1; attempt <= m.cfg.PollAttempts; attempt++ {
		m.sleep.Sleep(m.cfg.PollInterval)

		resp, err := m.ch.Do(command.OpQueryStatus, "")
		if err != nil {
			// Inconclusive: the device may be mid-association and
			// unable to answer; the attempt budget is the backstop.
			log.Debug().Int("attempt", attempt).Err(err).Msg("status poll failed")
			continue
		}

		switch classifyStatus(resp.Payload) {
		case statusAssociated:
			m.setState(StateConnected)
			log.Info().Str("ssid", ssid).Str("status", resp.Payload).Int("polls", attempt).Msg("associated")
			return attempt, nil
		case statusFailed:
			m.setState(StateDisconnected)
			log.Warn().Str("ssid", ssid).Str("status", resp.Payload).Msg("association failed")
			return attempt, fmt.Errorf("%w: %q", ErrConnectionFailed, resp.Payload)
		default:
			log.Debug().Int("attempt", attempt).Int("budget", m.cfg.PollAttempts).Str("status", resp.Payload).Msg("association pending")
		}
	}

	m.setState(StateDisconnected)
	return m.cfg.PollAttempts, fmt.Errorf("%w: %d polls", ErrConnectionTimeout, m.cfg.PollAttempts)
}

// Leave disconnects from the current network.
func (m *Manager) Leave() error {
	if _, err := m.ch.Do(command.OpDisconnect, ""); err != nil {
		return err
	}
	m.setState(StateDisconnected)
	return nil
}

// Status returns the device's raw association status payload.
func (m *Manager) Status() (string, error) {
	resp, err := m.ch.Do(command.OpQueryStatus, "")
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

// MAC returns the device's hardware address.
func (m *Manager) MAC() (string, error) {
	resp, err := m.ch.Do(command.OpGetMAC, "")
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

// Version returns the firmware banner.
func (m *Manager) Version() (string, error) {
	resp, err := m.ch.Do(command.OpGetVersion, "")
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

// Exec performs one single-shot vocabulary operation and returns its
// response unclassified.
func (m *Manager) Exec(op command.Op, arg string) (command.Response, error) {
	return m.ch.Do(op, arg)
}

type statusClass int

const (
	statusPending statusClass = iota
	statusAssociated
	statusFailed
)

// Private-range address literals that mark a successful association in the
// status payload.
var associatedMarkers = []string{"10.", "172.", "192.168."}

func classifyStatus(payload string) statusClass {
	for _, marker := range associatedMarkers {
		if strings.Contains(payload, marker) {
			return statusAssociated
		}
	}
	if strings.Contains(payload, "Failed") {
		return statusFailed
	}
	return statusPending
}
