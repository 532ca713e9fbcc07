package usecase

import (
	"context"
	"strings"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// Built-in directive keywords
const (
	DirectiveHelp     = "help"
	DirectiveNew      = "new"
	DirectiveStream   = "stream"
	DirectiveMe       = "me"
	DirectiveContexts = "contexts"
	DirectiveSet      = "set"
	DirectiveUnset    = "unset"

	// contextKeyword is the object word of set/unset and can never name a context
	contextKeyword = "context"
)

// DirectiveHandler answers a directive without calling the completion service
type DirectiveHandler func(ctx context.Context, msg *domain.Message, cmd Command) (string, error)

// DirectiveTable is the single registry of directive keywords. Every keyword
// it knows is reserved and cannot be used as a context name.
type DirectiveTable struct {
	handlers map[string]DirectiveHandler
	catalog  *domain.ModelCatalog
}

// NewDirectiveTable creates a table holding the built-in keywords and the
// model aliases of the catalog
func NewDirectiveTable(catalog *domain.ModelCatalog) *DirectiveTable {
	if catalog == nil {
		catalog = &domain.ModelCatalog{}
	}
	t := &DirectiveTable{
		handlers: make(map[string]DirectiveHandler),
		catalog:  catalog,
	}
	for _, k := range []string{
		DirectiveHelp, DirectiveNew, DirectiveStream, DirectiveMe,
		DirectiveContexts, DirectiveSet, DirectiveUnset, contextKeyword,
	} {
		t.handlers[k] = nil
	}
	return t
}

// Handle attaches a short-circuit handler to keyword.
func (t *DirectiveTable) Handle(keyword string, h DirectiveHandler) {
	t.handlers[strings.ToLower(keyword)] = h
}

// IsReserved reports whether name is a directive keyword or model alias.
func (t *DirectiveTable) IsReserved(name string) bool {
	name = domain.NormalizeContextName(name)
	if _, ok := t.handlers[name]; ok {
		return true
	}
	_, ok := t.catalog.Alias(name)
	return ok
}

// Match returns the handler of the first short-circuit directive in cmd.
func (t *DirectiveTable) Match(cmd Command) (string, DirectiveHandler, bool) {
	for _, d := range cmd.Directives {
		if h := t.handlers[d]; h != nil {
			return d, h, true
		}
	}
	return "", nil, false
}

// Model returns the model selected by the first alias directive in cmd.
func (t *DirectiveTable) Model(cmd Command) (string, bool) {
	for _, d := range cmd.Directives {
		if model, ok := t.catalog.Alias(d); ok {
			return model, true
		}
	}
	return "", false
}

// Aliases lists the model alias keywords in sorted order.
func (t *DirectiveTable) Aliases() []string {
	return t.catalog.AliasNames()
}
