package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// runeTokenizer counts one token per rune so tests can reason about sizes
type runeTokenizer struct{}

func (runeTokenizer) CountTokens(_ string, text string) int {
	return utf8.RuneCountInString(text)
}

func testCatalog() *domain.ModelCatalog {
	return &domain.ModelCatalog{
		Models: []domain.ModelSpec{
			{Name: "test-0613", TokensPerMessage: 3, TokensPerName: 1, ReplyPriming: 3, ContextWindow: 200, ReplyReserve: 50},
			{Name: "test-0301", TokensPerMessage: 4, TokensPerName: -1, ReplyPriming: 3, ContextWindow: 200, ReplyReserve: 50},
			{Name: "big-0613", TokensPerMessage: 3, TokensPerName: 1, ReplyPriming: 3, ContextWindow: 100000, ReplyReserve: 1000},
			{Name: "wide-0613", TokensPerMessage: 3, TokensPerName: 1, ReplyPriming: 3, ContextWindow: 1000, ReplyReserve: 100},
		},
		Families: []domain.ModelFamily{
			{Match: "test", Target: "test-0613"},
			{Match: "big", Target: "big-0613"},
			{Match: "wide", Target: "wide-0613"},
		},
		Aliases: map[string]string{"big": "big"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockMessageRepo struct {
	mu       sync.Mutex
	history  []domain.Message
	fetchErr error
	botID    string
	admins   map[string]bool
	sent     []sentMessage
	sendErr  error
	fetches  int
	scope    domain.Scope
}

type sentMessage struct {
	scope  domain.Scope
	anchor string
	text   string
}

func (m *mockMessageRepo) FetchMessages(ctx context.Context, scope domain.Scope, anchor *domain.Message, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	m.scope = scope
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	msgs := m.history
	if limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *mockMessageRepo) Send(ctx context.Context, scope domain.Scope, anchor *domain.Message, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{scope: scope, anchor: anchor.ID, text: text})
	return nil
}

func (m *mockMessageRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	return nil
}

func (m *mockMessageRepo) BotIdentity() string {
	return m.botID
}

func (m *mockMessageRepo) IsPrivileged(ctx context.Context, userID string) (bool, error) {
	return m.admins[userID], nil
}

func (m *mockMessageRepo) Authorize(ctx context.Context) error {
	return nil
}

type mockCompletionRepo struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests [][]domain.Entry
	models   []string
}

func (m *mockCompletionRepo) Complete(ctx context.Context, entries []domain.Entry, model string, maxTokens int) (*domain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, entries)
	m.models = append(m.models, model)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Completion{Text: m.reply, Model: model}, nil
}

type mockContextRepo struct {
	mu      sync.Mutex
	records []domain.ContextRecord
	err     error
}

func (m *mockContextRepo) List(ctx context.Context) ([]domain.ContextRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.ContextRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *mockContextRepo) Upsert(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.records {
		if m.records[i].Name == name {
			m.records[i].Value = value
			return nil
		}
	}
	m.records = append(m.records, domain.ContextRecord{Name: name, Value: value})
	return nil
}

func (m *mockContextRepo) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Name == name {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockContextRepo) Close() error {
	return nil
}
