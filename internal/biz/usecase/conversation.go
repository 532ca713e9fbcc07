package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
)

// PromptConfig contains prompt configuration
type PromptConfig struct {
	SystemPrompt   string // Base system instruction, first entry of every prompt
	DefaultModel   string // Model used when no alias directive is given
	MaxReplyTokens int    // Overrides the reply reserve of the model table when > 0
}

// DefaultPromptConfig contains default prompt configuration
var DefaultPromptConfig = PromptConfig{
	SystemPrompt: "You are a helpful assistant in a team chat. Answer concisely and use plain text.",
	DefaultModel: "gpt-3.5-turbo",
}

// ConversationUsecase handles conversation logic (aggregate)
type ConversationUsecase struct {
	parser      *CommandParser
	directives  *DirectiveTable
	contexts    *ContextStoreUsecase
	history     *HistoryUsecase
	summarizer  *SummarizeUsecase
	estimator   *TokenEstimator
	completion  repo.CompletionRepo
	messageRepo repo.MessageRepo
	promptCfg   PromptConfig
	logger      *slog.Logger
}

// NewConversationUsecase creates a new conversation usecase. summarizer may
// be nil to disable summarization of overflowing history.
func NewConversationUsecase(
	parser *CommandParser,
	directives *DirectiveTable,
	contexts *ContextStoreUsecase,
	history *HistoryUsecase,
	summarizer *SummarizeUsecase,
	estimator *TokenEstimator,
	completion repo.CompletionRepo,
	messageRepo repo.MessageRepo,
	promptCfg PromptConfig,
	logger *slog.Logger,
) *ConversationUsecase {
	uc := &ConversationUsecase{
		parser:      parser,
		directives:  directives,
		contexts:    contexts,
		history:     history,
		summarizer:  summarizer,
		estimator:   estimator,
		completion:  completion,
		messageRepo: messageRepo,
		promptCfg:   promptCfg,
		logger:      logger,
	}
	directives.Handle(DirectiveHelp, uc.handleHelp)
	directives.Handle(DirectiveContexts, uc.handleContexts)
	directives.Handle(DirectiveSet, uc.handleSet)
	directives.Handle(DirectiveUnset, uc.handleUnset)
	return uc
}

// TriggerResponse represents a trigger response
type TriggerResponse struct {
	Reply        string
	Model        string
	Directive    string // short-circuit directive that produced the reply
	PromptTokens int
	History      HistoryResult
	Summarized   bool
}

// ShouldRespond reports whether msg is addressed to the bot: every direct
// message is, group messages need a mention.
func (uc *ConversationUsecase) ShouldRespond(msg *domain.Message) bool {
	if msg.IsFromBot(uc.messageRepo.BotIdentity()) || msg.SenderType == "app" {
		return false
	}
	if msg.IsDirect() {
		return true
	}
	return msg.MentionsBot || uc.parser.Mentions(msg.Content)
}

// Trigger answers a message (core method)
func (uc *ConversationUsecase) Trigger(ctx context.Context, msg *domain.Message) (*TriggerResponse, error) {
	// 1. Parse directives
	cmd := uc.parser.Parse(msg.Content)

	// 2. Short-circuit directives answer without the model
	if keyword, handler, ok := uc.directives.Match(cmd); ok {
		reply, err := handler(ctx, msg, cmd)
		if err != nil {
			return nil, fmt.Errorf("directive %s: %w", keyword, err)
		}
		return &TriggerResponse{Reply: reply, Directive: keyword}, nil
	}

	if cmd.Text == "" {
		return &TriggerResponse{Reply: uc.emptyHint()}, nil
	}

	// 3. Select model
	model := uc.promptCfg.DefaultModel
	if alias, ok := uc.directives.Model(cmd); ok {
		model = alias
	}
	spec, err := uc.estimator.Spec(model)
	if err != nil {
		return nil, err
	}
	maxReply := spec.ReplyReserve
	if uc.promptCfg.MaxReplyTokens > 0 {
		maxReply = uc.promptCfg.MaxReplyTokens
		spec.ReplyReserve = maxReply
	}
	budget := spec.Budget()

	// 4. Build the fixed part of the prompt
	prompt := domain.NewPrompt(uc.promptCfg.SystemPrompt)
	seen := make(map[string]bool)
	for _, d := range cmd.Directives {
		if seen[d] {
			continue
		}
		seen[d] = true
		if record, ok := uc.contexts.Lookup(d); ok {
			prompt.AddSystem(record.Value)
		}
	}
	prompt.SetCurrent(cmd.Text)

	// 5. Fill history unless starting fresh
	var result HistoryResult
	if !cmd.Has(DirectiveNew) {
		req := HistoryRequest{
			Trigger: msg,
			Scope:   domain.ScopeOf(msg, cmd.Has(DirectiveStream)),
			Model:   model,
			Budget:  budget,
		}
		if cmd.Has(DirectiveMe) {
			req.OnlyFrom = msg.SenderID
		}
		result, err = uc.history.Assemble(ctx, prompt, req)
		if err != nil {
			return nil, err
		}
	} else if tokens, err := uc.estimator.Estimate(prompt.Entries(), model); err != nil {
		return nil, err
	} else if tokens > budget {
		return nil, fmt.Errorf("%w: %d tokens, budget %d", domain.ErrPromptTooLarge, tokens, budget)
	}

	// 6. Summarize what did not fit
	summarized := false
	if uc.summarizer != nil && result.Truncated {
		summarized = uc.summarizer.Apply(ctx, prompt, &result, model, budget)
	}

	entries := prompt.Entries()
	tokens, err := uc.estimator.Estimate(entries, model)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("requesting completion",
		"msg_id", msg.ID,
		"model", model,
		"prompt_tokens", tokens,
		"budget", budget,
		"history", result.Included,
		"dropped", len(result.Dropped),
		"summarized", summarized)

	// 7. Ask the model
	completion, err := uc.completion.Complete(ctx, entries, model, maxReply)
	if err != nil {
		return nil, err
	}

	return &TriggerResponse{
		Reply:        completion.Text,
		Model:        model,
		PromptTokens: tokens,
		History:      result,
		Summarized:   summarized,
	}, nil
}

func (uc *ConversationUsecase) emptyHint() string {
	return fmt.Sprintf("Ask me something after the mention, or send %shelp to see what I can do.", uc.parser.Marker())
}

func (uc *ConversationUsecase) handleHelp(_ context.Context, _ *domain.Message, _ Command) (string, error) {
	m := uc.parser.Marker()
	var b strings.Builder
	b.WriteString("Mention me with a question and I will answer using the recent conversation as context.\n\n")
	b.WriteString("Directives:\n")
	fmt.Fprintf(&b, "%shelp  show this message\n", m)
	fmt.Fprintf(&b, "%snew  ignore earlier messages\n", m)
	fmt.Fprintf(&b, "%sstream  use the whole channel instead of the current topic\n", m)
	fmt.Fprintf(&b, "%sme  only use your own messages and my replies\n", m)
	for _, alias := range uc.directives.Aliases() {
		model, _ := uc.directives.Model(Command{Directives: []string{alias}})
		fmt.Fprintf(&b, "%s%s  answer with %s\n", m, alias, model)
	}
	fmt.Fprintf(&b, "%scontexts  list saved contexts\n", m)
	fmt.Fprintf(&b, "%sset context <name> <text>  save a context\n", m)
	fmt.Fprintf(&b, "%sunset context <name>  delete a context\n", m)
	fmt.Fprintf(&b, "%s<name>  add a saved context to the prompt\n", m)
	fmt.Fprintf(&b, "\nDefault model: %s", uc.promptCfg.DefaultModel)
	return b.String(), nil
}

func (uc *ConversationUsecase) handleContexts(_ context.Context, _ *domain.Message, _ Command) (string, error) {
	records := uc.contexts.List()
	if len(records) == 0 {
		return "No contexts saved yet.", nil
	}
	var b strings.Builder
	b.WriteString("Saved contexts:")
	for _, r := range records {
		first, _, _ := strings.Cut(strings.TrimSpace(r.Value), "\n")
		fmt.Fprintf(&b, "\n%s%s: %s", uc.parser.Marker(), r.Name, strings.TrimSpace(first))
	}
	return b.String(), nil
}

func (uc *ConversationUsecase) handleSet(ctx context.Context, msg *domain.Message, cmd Command) (string, error) {
	name, value, err := contextArgs(uc.directiveArgs(msg, cmd, DirectiveSet), true)
	if err != nil {
		return "", err
	}
	if err := uc.contexts.Upsert(ctx, msg.SenderID, name, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("Context %s%s saved.", uc.parser.Marker(), domain.NormalizeContextName(name)), nil
}

func (uc *ConversationUsecase) handleUnset(ctx context.Context, msg *domain.Message, cmd Command) (string, error) {
	name, _, err := contextArgs(uc.directiveArgs(msg, cmd, DirectiveUnset), false)
	if err != nil {
		return "", err
	}
	if err := uc.contexts.Delete(ctx, msg.SenderID, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Context %s%s deleted.", uc.parser.Marker(), domain.NormalizeContextName(name)), nil
}

// directiveArgs is the raw text after keyword, falling back to the parsed text.
func (uc *ConversationUsecase) directiveArgs(msg *domain.Message, cmd Command, keyword string) string {
	if args, ok := uc.parser.After(msg.Content, keyword); ok {
		return args
	}
	return cmd.Text
}

var errContextUsage = errors.New("usage: set context <name> <text> or unset context <name>")

// contextArgs parses "context <name> [value]". The value keeps its inner
// formatting.
func contextArgs(text string, wantValue bool) (name, value string, err error) {
	rest, ok := cutWord(text)
	if !ok || !strings.EqualFold(rest.word, contextKeyword) {
		return "", "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, errContextUsage)
	}
	nameWord, ok := cutWord(rest.tail)
	if !ok {
		return "", "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, errContextUsage)
	}
	value = strings.TrimSpace(nameWord.tail)
	if wantValue && value == "" {
		return "", "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, errContextUsage)
	}
	return nameWord.word, value, nil
}

type wordCut struct {
	word string
	tail string
}

func cutWord(s string) (wordCut, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return wordCut{}, false
	}
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	if i < 0 {
		return wordCut{word: s}, true
	}
	return wordCut{word: s[:i], tail: s[i+1:]}, true
}
