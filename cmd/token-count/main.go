// Command token-count compares the bridge's prompt token estimate with the
// usage reported by the completion service for an interactive conversation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/conf"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/data"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/tokenizer"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	var model, tokenizerKind, modelsPath, system string
	var offline bool

	flagSet := pflag.NewFlagSet("token-count", pflag.ContinueOnError)
	flagSet.StringVarP(&model, "model", "m", "gpt-3.5-turbo", "model name or family")
	flagSet.StringVar(&tokenizerKind, "tokenizer", tokenizer.KindTiktoken, "tiktoken or heuristic")
	flagSet.StringVar(&modelsPath, "models-config", "", "model table YAML (default: configs/models.yaml)")
	flagSet.StringVar(&system, "system", "", "optional system message sent first")
	flagSet.BoolVar(&offline, "offline", false, "only count, do not call the completion service")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	_ = godotenv.Load()
	logger := conf.NewLogger(conf.LogConfig{Level: os.Getenv("LOG_LEVEL")}, os.Stderr)

	catalog, err := conf.LoadModelsConfig(modelsPath)
	if err != nil {
		return err
	}
	estimator := usecase.NewTokenEstimator(catalog, tokenizer.New(tokenizerKind, logger))
	if _, err := estimator.Spec(model); err != nil {
		return err
	}

	var completion repo.CompletionRepo
	if !offline {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return fmt.Errorf("OPENAI_API_KEY is required unless --offline is set")
		}
		completion = data.NewCompletionRepo(data.CompletionConfig{APIKey: key, BaseURL: os.Getenv("OPENAI_BASE_URL")})
	}

	var entries []domain.Entry
	if system != "" {
		entries = append(entries, domain.Entry{Role: domain.RoleSystem, Content: system})
	}
	return converse(context.Background(), estimator, completion, model, entries, in, out)
}

// converse reads one user line at a time until "quit" or EOF and prints the
// estimated and, when a completion service is given, the reported prompt size.
func converse(ctx context.Context, estimator *usecase.TokenEstimator, completion repo.CompletionRepo, model string, entries []domain.Entry, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "--> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		entries = append(entries, domain.Entry{Role: domain.RoleUser, Content: line})

		counted, err := estimator.Estimate(entries, model)
		if err != nil {
			return err
		}
		if completion == nil {
			fmt.Fprintf(out, "\n# %s: %d COUNTED #\n\n", model, counted)
			continue
		}

		resp, err := completion.Complete(ctx, entries, model, 0)
		if err != nil {
			return err
		}
		entries = append(entries, domain.Entry{Role: domain.RoleAssistant, Content: resp.Text})
		fmt.Fprintf(out, "AI: %s\n", resp.Text)
		fmt.Fprintf(out, "\n# %s: %d COUNTED; %d ACTUAL #\n\n", model, counted, resp.PromptTokens)
	}
	fmt.Fprintln(out, "EXIT")
	return scanner.Err()
}
