// Command send-message posts a text message as the bot, to a chat or as a
// threaded reply.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/conf"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/feishu"
)

func main() {
	var chatID, replyTo string
	var inThread bool

	flagSet := pflag.NewFlagSet("send-message", pflag.ContinueOnError)
	flagSet.StringVar(&chatID, "chat", "", "chat_id to send to")
	flagSet.StringVar(&replyTo, "reply-to", "", "message id to reply to instead of posting to the chat")
	flagSet.BoolVar(&inThread, "thread", false, "reply inside the topic thread of --reply-to")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(1)
	}

	message := strings.Join(flagSet.Args(), " ")
	if message == "" || (chatID == "") == (replyTo == "") {
		fmt.Fprintln(os.Stderr, "Usage: send-message (--chat <chat_id> | --reply-to <message_id> [--thread]) <message>")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := conf.LoadFromEnv()
	if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}
	logger := conf.NewLogger(cfg.Log, os.Stderr)
	client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger, cfg.Log.SlogLevel())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if replyTo != "" {
		err = client.ReplyText(ctx, replyTo, message, inThread)
	} else {
		err = client.SendText(ctx, "chat_id", chatID, message)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Message sent successfully!")
}
