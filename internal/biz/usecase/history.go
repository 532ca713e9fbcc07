package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
)

// DefaultHistoryFetchLimit is the number of messages fetched before the trigger
const DefaultHistoryFetchLimit = 100

// MarkupStripper turns rendered message markup into plain text
type MarkupStripper interface {
	Strip(text string) string
}

// HistoryUsecase fills a prompt with as much prior conversation as fits the
// model budget
type HistoryUsecase struct {
	messageRepo repo.MessageRepo
	estimator   *TokenEstimator
	parser      *CommandParser
	stripper    MarkupStripper
	fetchLimit  int
	logger      *slog.Logger
}

// NewHistoryUsecase creates a new history usecase
func NewHistoryUsecase(
	messageRepo repo.MessageRepo,
	estimator *TokenEstimator,
	parser *CommandParser,
	stripper MarkupStripper,
	fetchLimit int,
	logger *slog.Logger,
) *HistoryUsecase {
	if fetchLimit <= 0 {
		fetchLimit = DefaultHistoryFetchLimit
	}
	return &HistoryUsecase{
		messageRepo: messageRepo,
		estimator:   estimator,
		parser:      parser,
		stripper:    stripper,
		fetchLimit:  fetchLimit,
		logger:      logger,
	}
}

// HistoryRequest describes the conversation to collect
type HistoryRequest struct {
	Trigger *domain.Message
	Scope   domain.Scope
	Model   string
	Budget  int
	// OnlyFrom keeps only messages of this sender and the bot when set
	OnlyFrom string
}

// HistoryResult reports what Assemble did to the prompt
type HistoryResult struct {
	Included int
	// Dropped holds the messages that did not fit, oldest first
	Dropped    []domain.Entry
	Truncated  bool
	FreshStart bool
}

// Assemble inserts prior messages into prompt, newest first, until the next
// one would push the estimate over req.Budget or a message starting a fresh
// conversation has been included. A failed fetch leaves the history empty.
func (uc *HistoryUsecase) Assemble(ctx context.Context, prompt *domain.Prompt, req HistoryRequest) (HistoryResult, error) {
	var result HistoryResult

	base, err := uc.estimator.Estimate(prompt.Entries(), req.Model)
	if err != nil {
		return result, err
	}
	if base > req.Budget {
		return result, fmt.Errorf("%w: %d tokens, budget %d", domain.ErrPromptTooLarge, base, req.Budget)
	}

	messages, err := uc.messageRepo.FetchMessages(ctx, req.Scope, req.Trigger, uc.fetchLimit)
	if err != nil {
		uc.logger.Warn("fetch history failed, continuing without history",
			"chat_id", req.Scope.ChatID, "scope", req.Scope.Kind, "error", err)
		return result, nil
	}

	botID := uc.messageRepo.BotIdentity()
	for i := len(messages) - 1; i >= 0; i-- {
		msg := &messages[i]
		if msg.ID == req.Trigger.ID {
			continue
		}
		fromBot := msg.IsFromBot(botID)
		if req.OnlyFrom != "" && !fromBot && msg.SenderID != req.OnlyFrom {
			continue
		}

		entry, fresh, ok := uc.toEntry(msg, fromBot)
		if !ok {
			if fresh {
				result.FreshStart = true
				break
			}
			continue
		}

		if result.Truncated {
			result.Dropped = append([]domain.Entry{entry}, result.Dropped...)
		} else {
			prompt.PrependHistory(entry)
			tokens, err := uc.estimator.Estimate(prompt.Entries(), req.Model)
			if err != nil {
				return result, err
			}
			if tokens > req.Budget {
				prompt.DropOldestHistory()
				result.Truncated = true
				result.Dropped = append(result.Dropped, entry)
			} else {
				result.Included++
			}
		}

		if fresh {
			result.FreshStart = true
			break
		}
	}

	uc.logger.Debug("history assembled",
		"chat_id", req.Scope.ChatID,
		"scope", req.Scope.Kind,
		"fetched", len(messages),
		"included", result.Included,
		"dropped", len(result.Dropped))

	return result, nil
}

// toEntry converts a platform message into a prompt entry. fresh reports a
// message that opens a new conversation; ok is false when nothing remains
// after stripping markup, mentions and directives.
func (uc *HistoryUsecase) toEntry(msg *domain.Message, fromBot bool) (entry domain.Entry, fresh, ok bool) {
	text := msg.Content
	if uc.stripper != nil {
		text = uc.stripper.Strip(text)
	}
	fresh = uc.parser.StartsFresh(text)
	cmd := uc.parser.Parse(text)
	if cmd.Text == "" {
		return domain.Entry{}, fresh, false
	}

	role := domain.RoleUser
	if fromBot {
		role = domain.RoleAssistant
	}
	return domain.Entry{Role: role, Content: cmd.Text}, fresh, true
}
