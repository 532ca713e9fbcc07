package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
)

const (
	// DefaultSummaryMinDropped is the smallest overflow worth summarizing
	DefaultSummaryMinDropped = 4

	summaryDelimiter    = "###"
	summaryMaxChars     = 50000
	summaryReplyTokens  = 300
	summaryEntryHeading = "Summary of the earlier conversation:\n"
)

// SummarizeUsecase condenses history that did not fit the budget into a
// single system entry
type SummarizeUsecase struct {
	completion repo.CompletionRepo
	estimator  *TokenEstimator
	minDropped int
	logger     *slog.Logger
}

// NewSummarizeUsecase creates a new summarize usecase
func NewSummarizeUsecase(completion repo.CompletionRepo, estimator *TokenEstimator, minDropped int, logger *slog.Logger) *SummarizeUsecase {
	if minDropped <= 0 {
		minDropped = DefaultSummaryMinDropped
	}
	return &SummarizeUsecase{
		completion: completion,
		estimator:  estimator,
		minDropped: minDropped,
		logger:     logger,
	}
}

// Apply summarizes the history that did not fit and adds the summary to the
// prompt preamble. Room for the summary is made by moving the oldest included
// history into the summarized part; result is updated to match. It reports
// whether a summary was added; failures leave the prompt unchanged.
func (uc *SummarizeUsecase) Apply(ctx context.Context, prompt *domain.Prompt, result *HistoryResult, model string, budget int) bool {
	if !result.Truncated || len(result.Dropped) < uc.minDropped {
		return false
	}

	reserve, err := uc.estimator.EntryTokens(domain.Entry{Role: domain.RoleSystem, Content: summaryEntryHeading}, model)
	if err != nil {
		return false
	}
	reserve += summaryReplyTokens

	fixed, err := uc.estimator.Estimate(fixedEntries(prompt), model)
	if err != nil {
		return false
	}
	if fixed+reserve > budget {
		uc.logger.Info("no room for a summary", "model", model, "tokens", fixed, "reserve", reserve, "budget", budget)
		return false
	}

	var evicted []domain.Entry
	for {
		tokens, err := uc.estimator.Estimate(prompt.Entries(), model)
		if err != nil {
			restoreHistory(prompt, evicted)
			return false
		}
		if tokens+reserve <= budget {
			break
		}
		e, ok := prompt.DropOldestHistory()
		if !ok {
			break
		}
		evicted = append(evicted, e)
	}

	dropped := append(append([]domain.Entry(nil), result.Dropped...), evicted...)
	completion, err := uc.completion.Complete(ctx, []domain.Entry{
		{Role: domain.RoleUser, Content: summarizerPrompt(dropped)},
	}, model, summaryReplyTokens)
	if err != nil {
		restoreHistory(prompt, evicted)
		uc.logger.Warn("summarize history failed", "model", model, "dropped", len(dropped), "error", err)
		return false
	}
	summary := strings.TrimSpace(completion.Text)
	if summary == "" {
		restoreHistory(prompt, evicted)
		return false
	}

	prompt.AddSystem(summaryEntryHeading + summary)
	tokens, err := uc.estimator.Estimate(prompt.Entries(), model)
	if err != nil || tokens > budget {
		prompt.RemoveLastSystem()
		restoreHistory(prompt, evicted)
		uc.logger.Info("summary does not fit, discarded", "model", model, "tokens", tokens, "budget", budget)
		return false
	}

	result.Included -= len(evicted)
	result.Dropped = dropped
	uc.logger.Info("history summarized", "model", model, "dropped", len(dropped), "evicted", len(evicted), "tokens", tokens)
	return true
}

// fixedEntries is the prompt without its history.
func fixedEntries(prompt *domain.Prompt) []domain.Entry {
	out := append([]domain.Entry(nil), prompt.Preamble...)
	if prompt.Current != nil {
		out = append(out, *prompt.Current)
	}
	return out
}

// restoreHistory puts evicted entries back, oldest first.
func restoreHistory(prompt *domain.Prompt, evicted []domain.Entry) {
	for i := len(evicted) - 1; i >= 0; i-- {
		prompt.PrependHistory(evicted[i])
	}
}

// summarizerPrompt renders the transcript newest-last, keeping only the
// most recent summaryMaxChars characters.
func summarizerPrompt(entries []domain.Entry) string {
	var transcript strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&transcript, "%s: %s\n", e.Role, e.Content)
	}
	text := transcript.String()
	if len(text) > summaryMaxChars {
		text = text[len(text)-summaryMaxChars:]
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
	}

	return fmt.Sprintf(`Summarize the following conversation between an AI assistant and its users, the conversation is delimited by %[1]s.
Messages from the users have greater importance while summarizing.
Try limiting your summary to 150 words.
%[1]s
%[2]s%[1]s`, summaryDelimiter, text)
}
