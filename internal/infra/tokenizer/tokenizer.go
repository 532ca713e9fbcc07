// Package tokenizer counts text tokens for prompt budgeting.
package tokenizer

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Kinds accepted by New
const (
	KindTiktoken  = "tiktoken"
	KindHeuristic = "heuristic"
)

// DefaultEncoding is used when a model does not name one
const DefaultEncoding = "cl100k_base"

// Counter counts the tokens of text under an encoding
type Counter interface {
	CountTokens(encoding, text string) int
}

// New returns the counter of the given kind. Unknown kinds fall back to the
// heuristic counter.
func New(kind string, logger *slog.Logger) Counter {
	switch strings.ToLower(kind) {
	case KindHeuristic:
		return Heuristic{}
	case KindTiktoken, "":
		return NewTiktoken(logger)
	default:
		logger.Warn("unknown tokenizer, using heuristic", "tokenizer", kind)
		return Heuristic{}
	}
}

// Heuristic approximates one token per four bytes of text
type Heuristic struct{}

// CountTokens returns ceil(len(text)/4).
func (Heuristic) CountTokens(_ string, text string) int {
	return (len(text) + 3) / 4
}

// Tiktoken counts tokens with BPE encodings. Encodings are loaded lazily
// and cached; if one cannot be loaded the heuristic is used for it.
type Tiktoken struct {
	logger *slog.Logger

	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	failed    map[string]bool
	fallback  Heuristic
}

// NewTiktoken creates a tiktoken counter
func NewTiktoken(logger *slog.Logger) *Tiktoken {
	return &Tiktoken{
		logger:    logger,
		encodings: make(map[string]*tiktoken.Tiktoken),
		failed:    make(map[string]bool),
	}
}

// CountTokens returns the BPE token count of text.
func (t *Tiktoken) CountTokens(encoding, text string) int {
	if text == "" {
		return 0
	}
	enc := t.encoding(encoding)
	if enc == nil {
		return t.fallback.CountTokens(encoding, text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (t *Tiktoken) encoding(name string) *tiktoken.Tiktoken {
	if name == "" {
		name = DefaultEncoding
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok := t.encodings[name]; ok {
		return enc
	}
	if t.failed[name] {
		return nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		t.failed[name] = true
		t.logger.Warn("load tiktoken encoding failed, using heuristic", "encoding", name, "error", err)
		return nil
	}
	t.encodings[name] = enc
	return enc
}
