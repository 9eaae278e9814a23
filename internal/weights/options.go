package weights

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrUnknownToken  = errors.New("unrecognised configuration token")
	ErrContradiction = errors.New("contradictory configuration")
)

// Token is one entry of the closed configuration vocabulary.
type Token string

const (
	TokenTRK    Token = "TRK"    // tracking efficiency ratio
	TokenPID    Token = "PID"    // particle identification efficiency
	TokenL0     Token = "L0"     // first-level trigger efficiency
	TokenHLT    Token = "HLT"    // high-level trigger efficiency, conditional on L0
	TokenBS     Token = "BS"     // bootstrap ensemble mode
	TokenInterp Token = "interp" // interpolate instead of flat bin lookup
)

// componentTokens lists the tokens that enable components, in evaluation
// order.
var componentTokens = []Token{TokenTRK, TokenPID, TokenL0, TokenHLT}

var canonicalOrder = []Token{TokenTRK, TokenPID, TokenL0, TokenHLT, TokenBS, TokenInterp}

var vocabulary = map[string]Token{
	"trk":    TokenTRK,
	"pid":    TokenPID,
	"l0":     TokenL0,
	"hlt":    TokenHLT,
	"bs":     TokenBS,
	"interp": TokenInterp,
}

// ParseToken resolves s against the vocabulary, ignoring case.
func ParseToken(s string) (Token, error) {
	t, ok := vocabulary[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownToken, s)
	}
	return t, nil
}

// IsComponent reports whether t enables weight components.
func (t Token) IsComponent() bool { return t.rank() >= 0 }

func (t Token) rank() int {
	for i, c := range componentTokens {
		if c == t {
			return i
		}
	}
	return -1
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(b []byte) error {
	p, err := ParseToken(string(b))
	if err != nil {
		return err
	}
	*t = p
	return nil
}

// Options is a parsed configuration string.
type Options struct {
	TRK    bool
	PID    bool
	L0     bool
	HLT    bool
	BS     bool
	Interp bool
}

// ParseOptions splits s on '-', '_', ',', '.' and whitespace and resolves
// every piece against the vocabulary. An empty string enables nothing.
func ParseOptions(s string) (Options, error) {
	var o Options
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ',' || r == '.' || unicode.IsSpace(r)
	})
	for _, f := range fields {
		t, err := ParseToken(f)
		if err != nil {
			return Options{}, fmt.Errorf("parse %q: %w", s, err)
		}
		o.set(t)
	}
	if err := o.Validate(); err != nil {
		return Options{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return o, nil
}

func (o *Options) set(t Token) {
	switch t {
	case TokenTRK:
		o.TRK = true
	case TokenPID:
		o.PID = true
	case TokenL0:
		o.L0 = true
	case TokenHLT:
		o.HLT = true
	case TokenBS:
		o.BS = true
	case TokenInterp:
		o.Interp = true
	}
}

// Enabled reports whether t is switched on.
func (o Options) Enabled(t Token) bool {
	switch t {
	case TokenTRK:
		return o.TRK
	case TokenPID:
		return o.PID
	case TokenL0:
		return o.L0
	case TokenHLT:
		return o.HLT
	case TokenBS:
		return o.BS
	case TokenInterp:
		return o.Interp
	}
	return false
}

// Any reports whether at least one component token is on.
func (o Options) Any() bool { return o.TRK || o.PID || o.L0 || o.HLT }

// Validate rejects token combinations that would yield a silently wrong
// weight.
func (o Options) Validate() error {
	if o.HLT && !o.L0 {
		return fmt.Errorf("%w: HLT efficiencies are conditional on L0, enable L0 too", ErrContradiction)
	}
	if o.BS && !o.Any() {
		return fmt.Errorf("%w: BS without any weight component", ErrContradiction)
	}
	if o.Interp && !o.Any() {
		return fmt.Errorf("%w: interp without any weight component", ErrContradiction)
	}
	return nil
}

// String renders o in canonical token order.
func (o Options) String() string {
	var parts []string
	for _, t := range canonicalOrder {
		if o.Enabled(t) {
			parts = append(parts, string(t))
		}
	}
	return strings.Join(parts, "-")
}
