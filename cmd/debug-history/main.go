// Command debug-history prints the prompt the bridge would assemble for a
// question asked in a chat or topic right now.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/conf"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/data"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/feishu"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/markup"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/tokenizer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var chatID, threadID, model, question string
	var p2p bool

	flagSet := pflag.NewFlagSet("debug-history", pflag.ContinueOnError)
	flagSet.StringVar(&chatID, "chat", "", "chat_id to read (required)")
	flagSet.StringVar(&threadID, "thread", "", "topic thread id, reads only that topic")
	flagSet.BoolVar(&p2p, "p2p", false, "treat the chat as a direct chat")
	flagSet.StringVar(&model, "model", "", "model to budget for (default: DEFAULT_MODEL)")
	flagSet.StringVar(&question, "question", "(debug question)", "text of the simulated trigger")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if chatID == "" {
		return fmt.Errorf("--chat is required")
	}

	_ = godotenv.Load()
	cfg := conf.LoadFromEnv()
	logger := conf.NewLogger(cfg.Log, os.Stderr)
	if model == "" {
		model = cfg.Prompt.DefaultModel
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger, cfg.Log.SlogLevel())
	messages := data.NewFeishuRepo(client, logger)
	if err := messages.Authorize(ctx); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	estimator := usecase.NewTokenEstimator(cfg.Models, tokenizer.New(cfg.Tokenizer, logger))
	parser := usecase.NewCommandParser(cfg.Prompt.DirectiveMarker, cfg.Feishu.BotName, client.BotName())
	history := usecase.NewHistoryUsecase(messages, estimator, parser, markup.NewStripper(), cfg.History.FetchLimit, logger)

	spec, err := estimator.Spec(model)
	if err != nil {
		return err
	}
	if cfg.OpenAI.MaxReplyTokens > 0 {
		spec.ReplyReserve = cfg.OpenAI.MaxReplyTokens
	}

	trigger := &domain.Message{
		ChatID:     chatID,
		ChatType:   domain.ChatTypeGroup,
		ThreadID:   threadID,
		Content:    question,
		CreateTime: time.Now(),
	}
	if p2p {
		trigger.ChatType = domain.ChatTypeP2P
	}

	prompt := domain.NewPrompt(cfg.Prompt.SystemPrompt)
	prompt.SetCurrent(question)
	result, err := history.Assemble(ctx, prompt, usecase.HistoryRequest{
		Trigger: trigger,
		Scope:   domain.ScopeOf(trigger, false),
		Model:   model,
		Budget:  spec.Budget(),
	})
	if err != nil {
		return err
	}

	entries := prompt.Entries()
	tokens, err := estimator.Estimate(entries, model)
	if err != nil {
		return err
	}

	for i, e := range entries {
		fmt.Printf("[%d] %-9s %s\n", i, e.Role, strings.ReplaceAll(e.Content, "\n", "\n              "))
	}
	fmt.Printf("\nmodel=%s tokens=%d budget=%d history=%d dropped=%d truncated=%v fresh=%v\n",
		model, tokens, spec.Budget(), result.Included, len(result.Dropped), result.Truncated, result.FreshStart)
	return nil
}
