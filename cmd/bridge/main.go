package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/api"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/conf"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/data"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/feishu"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/markup"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/tokenizer"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/server"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg := conf.LoadFromEnv()
	logger := conf.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret,
		logger.With("component", "feishu-client"), cfg.Log.SlogLevel())

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, data.CompletionConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	}, cfg.Context.DBPath, logger)
	if err != nil {
		logger.Error("failed to create repositories", "error", err)
		os.Exit(1)
	}
	defer repos.Context.Close()
	logger.Info("context store opened", "path", cfg.Context.DBPath)

	if err := repos.Message.Authorize(ctx); err != nil {
		logger.Error("feishu authorization failed", "error", err)
		repos.Context.Close()
		os.Exit(1)
	}

	// Initialize usecase layer
	ucs, err := newUsecases(ctx, cfg, repos, feishuClient.BotName(), logger)
	if err != nil {
		logger.Error("failed to initialize usecases", "error", err)
		repos.Context.Close()
		os.Exit(1)
	}

	// Initialize service layer
	convSvc := service.NewConversationService(ucs.Conversation, ucs.Reply, repos.Message,
		logger.With("component", "service"))

	// Initialize HTTP API server for context-mcp
	var apiServer *api.Server
	if cfg.APIPort > 0 {
		apiServer = api.NewServer(ucs.Contexts, ucs.Estimator, cfg.Prompt.DefaultModel, cfg.APIPort,
			logger.With("component", "api"))
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("API server error", "error", err)
			}
		}()
	}

	// Initialize server
	srv := server.NewFeishuServer(feishuClient, convSvc, server.DefaultQueueSize,
		logger.With("component", "server"))

	go func() {
		logger.Info("starting feishu-gpt bridge",
			"bot", cfg.Feishu.BotName,
			"app_name", feishuClient.BotName(),
			"default_model", cfg.Prompt.DefaultModel,
			"permission", cfg.Context.Permission)
		if err := srv.Start(ctx); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Warn("API server shutdown", "error", err)
		}
	}
	srv.Wait()
}

// newUsecases wires the business layer. appName is the bot name Feishu renders
// in mentions; it is recognized alongside the configured BOT_NAME.
func newUsecases(ctx context.Context, cfg *conf.Config, repos *data.Repositories, appName string, logger *slog.Logger) (*biz.Usecases, error) {
	counter := tokenizer.New(cfg.Tokenizer, logger.With("component", "tokenizer"))
	estimator := usecase.NewTokenEstimator(cfg.Models, counter)
	parser := usecase.NewCommandParser(cfg.Prompt.DirectiveMarker, cfg.Feishu.BotName, appName)
	directives := usecase.NewDirectiveTable(cfg.Models)

	contexts := usecase.NewContextStoreUsecase(repos.Context, directives, repos.Message,
		cfg.Context.ToContextStoreConfig(), logger.With("component", "contexts"))
	if err := contexts.Load(ctx); err != nil {
		return nil, err
	}

	history := usecase.NewHistoryUsecase(repos.Message, estimator, parser, markup.NewStripper(),
		cfg.History.FetchLimit, logger.With("component", "history"))

	var summarizer *usecase.SummarizeUsecase
	if cfg.History.Summarize {
		summarizer = usecase.NewSummarizeUsecase(repos.Completion, estimator, cfg.History.SummaryMinDropped,
			logger.With("component", "summarizer"))
	}

	reply := usecase.NewReplyUsecase(repos.Message, usecase.DefaultReplyChunkSize)
	conversation := usecase.NewConversationUsecase(parser, directives, contexts, history, summarizer,
		estimator, repos.Completion, repos.Message, cfg.ToPromptConfig(), logger.With("component", "conversation"))

	return &biz.Usecases{
		Estimator:    estimator,
		Contexts:     contexts,
		History:      history,
		Summarize:    summarizer,
		Reply:        reply,
		Conversation: conversation,
	}, nil
}
