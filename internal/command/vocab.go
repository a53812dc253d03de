package command

import (
	"errors"
	"fmt"
)

// Op names one operation of the co-processor's command vocabulary.
type Op int

const (
	OpDisconnect Op = iota
	OpSetSecurityMode
	OpSetSSID
	OpSetPassphrase
	OpSetEncryption
	OpConnect
	OpQueryStatus
	OpGetMAC
	OpGetVersion
	OpSetVerbosity
)

var opNames = map[Op]string{
	OpDisconnect:      "disconnect",
	OpSetSecurityMode: "set-security-mode",
	OpSetSSID:         "set-ssid",
	OpSetPassphrase:   "set-passphrase",
	OpSetEncryption:   "set-encryption",
	OpConnect:         "connect",
	OpQueryStatus:     "query-status",
	OpGetMAC:          "get-mac",
	OpGetVersion:      "get-version",
	OpSetVerbosity:    "set-verbosity",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Device-defined argument values for the short-code dialect.
const (
	SecurityWPA2   = "2"
	EncryptionWPA2 = "4"
	VerbosityQuiet = "1"
)

var (
	ErrUnknownOp     = errors.New("command: unknown operation")
	ErrMissingArg    = errors.New("command: operation requires an argument")
	ErrUnexpectedArg = errors.New("command: operation takes no argument")
)

// Vocabulary renders operations into CR-terminated command text. Two wire
// dialects exist in the device family (the word-framed short-code protocol
// and a marker-framed verbose protocol); the dialect is a policy choice, not
// a hard-coded table.
type Vocabulary interface {
	Render(op Op, arg string) (string, error)
}

// ShortCodes is the word-framed short-code dialect (ISM43362 eS-WiFi).
// Codes are fixed by firmware and must not be altered.
type ShortCodes struct{}

var shortCodes = map[Op]struct {
	code     string
	takesArg bool
}{
	OpDisconnect:      {"CD", false},
	OpSetSecurityMode: {"CB", true},
	OpSetSSID:         {"C1", true},
	OpSetPassphrase:   {"C2", true},
	OpSetEncryption:   {"C3", true},
	OpConnect:         {"C0", false},
	OpQueryStatus:     {"C?", false},
	OpGetMAC:          {"Z5", false},
	OpGetVersion:      {"MR", false},
	OpSetVerbosity:    {"MT", true},
}

func (ShortCodes) Render(op Op, arg string) (string, error) {
	entry, ok := shortCodes[op]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	if entry.takesArg {
		if arg == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingArg, op)
		}
		return entry.code + "=" + arg + "\r", nil
	}
	if arg != "" {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedArg, op)
	}
	return entry.code + "\r", nil
}
