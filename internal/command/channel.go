// Package command owns the request/response contract with the co-processor:
// building CR-terminated command text, driving the framing layer, and
// recovering payload and status from the loosely delimited response stream.
package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/eswifictl/internal/transport"
)

var (
	ErrBadCommand        = errors.New("command: command must be non-empty and CR-terminated")
	ErrCommandTooLong    = errors.New("command: command exceeds capacity")
	ErrResponseMalformed = errors.New("command: malformed response")
	ErrResponseTooLong   = errors.New("command: response exceeds capacity")
	ErrInitTimeout       = errors.New("command: device never asserted ready for the greeting")
	ErrPromptOverflow    = errors.New("command: greeting truncated at cursor capacity")
)

// CommandError carries the device's non-OK status token. The payload of a
// failed response is withheld; the device's verdict is the only signal.
type CommandError struct {
	Status string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command: device returned %q", e.Status)
}

// Outcome labels for command reporting.
const (
	OutcomeOK             = "ok"
	OutcomeCommandFailed  = "command_failed"
	OutcomeTransportError = "transport_error"
	OutcomeMalformed      = "malformed"
	OutcomeTooLong        = "too_long"
)

// Reporter receives one record per command attempt. Implementations must be
// treated as untrusted: a panicking or failing reporter never changes the
// protocol result.
type Reporter interface {
	Command(cmd string, outcome string, err error)
}

// Response is one parsed device reply.
type Response struct {
	Payload string
	Status  string
}

// Config bounds the channel's buffers and the prompt handshake.
type Config struct {
	// MaxCommandBytes caps outgoing command text.
	MaxCommandBytes int
	// MaxResponseBytes caps response assembly; overflow aborts the command
	// with ErrResponseTooLong (the command is safe to retry).
	MaxResponseBytes int
	// PromptCapacity caps the post-reset greeting cursor.
	PromptCapacity int
	// PromptPollInterval and PromptAttempts bound the one-time wait for the
	// device to raise ready after reset/wake.
	PromptPollInterval time.Duration
	PromptAttempts     int
}

func DefaultConfig() Config {
	return Config{
		MaxCommandBytes:    256,
		MaxResponseBytes:   256,
		PromptCapacity:     64,
		PromptPollInterval: 10 * time.Millisecond,
		PromptAttempts:     1000,
	}
}

// Channel issues commands over a Framer and parses what comes back. One
// request is in flight at a time; the channel is not safe for concurrent
// use and does not try to be.
type Channel struct {
	framer   *transport.Framer
	vocab    Vocabulary
	cfg      Config
	reporter Reporter
}

func NewChannel(framer *transport.Framer, vocab Vocabulary, cfg Config, reporter Reporter) *Channel {
	def := DefaultConfig()
	if cfg.MaxCommandBytes <= 0 {
		cfg.MaxCommandBytes = def.MaxCommandBytes
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = def.MaxResponseBytes
	}
	if cfg.PromptCapacity <= 0 {
		cfg.PromptCapacity = def.PromptCapacity
	}
	if cfg.PromptPollInterval <= 0 {
		cfg.PromptPollInterval = def.PromptPollInterval
	}
	if cfg.PromptAttempts <= 0 {
		cfg.PromptAttempts = def.PromptAttempts
	}
	if vocab == nil {
		vocab = ShortCodes{}
	}
	return &Channel{framer: framer, vocab: vocab, cfg: cfg, reporter: reporter}
}

// Do renders op through the channel's vocabulary and sends it.
func (c *Channel) Do(op Op, arg string) (Response, error) {
	cmd, err := c.vocab.Render(op, arg)
	if err != nil {
		return Response{}, err
	}
	return c.Send(cmd)
}

// Send transmits one command and returns its parsed response. The command
// must be non-empty and CR-terminated; the device re-evaluates on every
// send, so any failure here leaves the command safe to retry.
func (c *Channel) Send(cmd string) (Response, error) {
	if cmd == "" || !strings.HasSuffix(cmd, "\r") {
		return Response{}, fmt.Errorf("%w: %q", ErrBadCommand, cmd)
	}
	if len(cmd) > c.cfg.MaxCommandBytes {
		return Response{}, fmt.Errorf("%w: %d bytes", ErrCommandTooLong, len(cmd))
	}

	if err := c.framer.SendFrame([]byte(cmd)); err != nil {
		c.report(cmd, OutcomeTransportError, err)
		return Response{}, err
	}

	raw, err := c.framer.RecvFrame(c.cfg.MaxResponseBytes)
	if err != nil {
		if errors.Is(err, transport.ErrOverflow) {
			err = fmt.Errorf("%w: %v", ErrResponseTooLong, err)
			c.report(cmd, OutcomeTooLong, err)
			return Response{}, err
		}
		c.report(cmd, OutcomeTransportError, err)
		return Response{}, err
	}

	resp, err := parseResponse(raw)
	switch {
	case err == nil:
		c.report(cmd, OutcomeOK, nil)
	case isCommandError(err):
		c.report(cmd, OutcomeCommandFailed, err)
	default:
		c.report(cmd, OutcomeMalformed, err)
	}
	return resp, err
}

// FetchPrompt performs the one-time post-reset handshake: it waits for the
// ready line, then clocks the greeting out of the device, retaining only
// printable ASCII into a bounded cursor. A missing greeting (ErrInitTimeout)
// and a truncated one (ErrPromptOverflow) are both non-fatal by contract;
// callers may proceed to normal commands either way. attempts <= 0 uses the
// configured budget.
func (c *Channel) FetchPrompt(attempts int) (string, error) {
	if attempts <= 0 {
		attempts = c.cfg.PromptAttempts
	}
	if err := c.framer.WaitReady(c.cfg.PromptPollInterval, attempts); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInitTimeout, err)
	}

	raw, err := c.framer.Drain(c.cfg.PromptCapacity, printable)
	cursor := string(raw)
	if err != nil {
		if errors.Is(err, transport.ErrOverflow) {
			log.Warn().Str("cursor", cursor).Msg("greeting truncated")
			return cursor, fmt.Errorf("%w: %v", ErrPromptOverflow, err)
		}
		return cursor, err
	}
	log.Debug().Str("cursor", cursor).Msg("greeting received")
	return cursor, nil
}

// parseResponse recovers payload and status from the recovered text. The
// grammar is exactly: empty line, payload line, status line. Anything else
// is malformed and is reported as such, never papered over with an empty
// success.
func parseResponse(raw []byte) (Response, error) {
	lines := strings.Split(string(raw), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	if len(lines) < 3 {
		return Response{}, fmt.Errorf("%w: %d lines", ErrResponseMalformed, len(lines))
	}
	if lines[0] != "" {
		return Response{}, fmt.Errorf("%w: missing leading empty line", ErrResponseMalformed)
	}
	payload, status := lines[1], lines[2]
	if status == "" {
		return Response{}, fmt.Errorf("%w: missing status token", ErrResponseMalformed)
	}
	if status != "OK" {
		return Response{}, &CommandError{Status: status}
	}
	return Response{Payload: payload, Status: status}, nil
}

func isCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

func printable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

func (c *Channel) report(cmd, outcome string, err error) {
	if c.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("command reporter panicked")
		}
	}()
	c.reporter.Command(cmd, outcome, err)
}
