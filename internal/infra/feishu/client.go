package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

const botInfoPath = "/open-apis/bot/v3/info"

// Message represents a received Feishu message
type Message struct {
	ChatID      string
	MsgID       string
	ThreadID    string            // Topic thread, empty outside threads
	MsgType     string            // text, post
	ChatType    string            // p2p (private), group
	Content     string            // Text content (extracted from all message types)
	Sender      *Sender           // Message sender info
	MentionMap  map[string]string // Map from mention key (@_user_1) to real name
	MentionsBot bool              // True if the bot was mentioned
	CreateTime  int64             // Message creation time (milliseconds Unix timestamp from Feishu)
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id for users, app_id for apps
	SenderType string // user, app
	TenantKey  string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	logger    *slog.Logger
	logLevel  larkcore.LogLevel

	mu        sync.RWMutex
	botOpenID string // Bot's own open_id, used to detect mentions
	botName   string
}

// NewClient creates a new Feishu client. opts are passed to the Lark SDK
// client after the log level.
func NewClient(appID, appSecret string, logger *slog.Logger, level slog.Level, opts ...lark.ClientOptionFunc) *Client {
	logLevel := larkLogLevel(level)
	opts = append([]lark.ClientOptionFunc{lark.WithLogLevel(logLevel)}, opts...)
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret, opts...),
		logger:    logger,
		logLevel:  logLevel,
	}
}

// AppID returns the app ID, which is the sender ID of the bot's own messages
func (c *Client) AppID() string {
	return c.appID
}

// BotOpenID returns the bot's open_id once Authorize has succeeded
func (c *Client) BotOpenID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botOpenID
}

// BotName returns the app name users see in mentions, once Authorize has
// succeeded
func (c *Client) BotName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botName
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and listens until ctx is done
func (c *Client) Start(ctx context.Context) error {
	// Register event handler
	// Note: Must return quickly so SDK can send ACK, otherwise Feishu will retry due to timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleMessage(event)
			return nil
		})

	// Create WebSocket client
	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(c.logLevel),
	)

	c.logger.Info("starting websocket connection")

	// Start WebSocket (blocking)
	return c.wsCli.Start(ctx)
}

// Authorize checks the app credentials and learns the bot's open_id and
// name. The SDK obtains and caches the tenant access token.
func (c *Client) Authorize(ctx context.Context) error {
	resp, err := c.larkCli.Get(ctx, botInfoPath, nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("bot info API error %d: %s", botResult.Code, botResult.Msg)
	}

	c.mu.Lock()
	c.botOpenID = botResult.Bot.OpenID
	c.botName = botResult.Bot.AppName
	c.mu.Unlock()

	c.logger.Info("authorized", "bot_open_id", botResult.Bot.OpenID, "bot_name", botResult.Bot.AppName)
	return nil
}

// handleMessage processes incoming Feishu messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	// Filter out messages sent by the bot itself to prevent infinite loops
	if event.Event.Sender != nil && deref(event.Event.Sender.SenderType) == "app" {
		return
	}

	msg := &Message{
		ChatID:   deref(rawMsg.ChatId),
		MsgID:    deref(rawMsg.MessageId),
		ThreadID: deref(rawMsg.ThreadId),
		MsgType:  deref(rawMsg.MessageType),
		ChatType: deref(rawMsg.ChatType),
	}

	// Parse create time (milliseconds Unix timestamp)
	if ts, err := strconv.ParseInt(deref(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}

	// Parse sender info
	if sender := event.Event.Sender; sender != nil {
		msg.Sender = &Sender{
			SenderType: deref(sender.SenderType),
			TenantKey:  deref(sender.TenantKey),
		}
		if sender.SenderId != nil {
			msg.Sender.SenderID = deref(sender.SenderId.OpenId)
		}
	}

	// Build a map from mention key (@_user_1) to real name and check if bot was mentioned
	msg.MentionMap = make(map[string]string)
	botOpenID := c.BotOpenID()
	for _, mention := range rawMsg.Mentions {
		if mention.Id != nil && botOpenID != "" && deref(mention.Id.OpenId) == botOpenID {
			msg.MentionsBot = true
		}
		if mention.Key != nil && mention.Name != nil {
			msg.MentionMap[*mention.Key] = *mention.Name
		}
	}

	content, ok := parseContent(msg.MsgType, deref(rawMsg.Content), msg.MentionMap)
	if !ok {
		c.logger.Debug("unsupported message type", "msg_type", msg.MsgType, "msg_id", msg.MsgID)
		return
	}
	msg.Content = content

	c.logger.Debug("message received",
		"msg_id", msg.MsgID,
		"chat_id", msg.ChatID,
		"chat_type", msg.ChatType,
		"thread_id", msg.ThreadID,
		"mentions_bot", msg.MentionsBot)

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

func larkLogLevel(level slog.Level) larkcore.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return larkcore.LogLevelDebug
	case level <= slog.LevelInfo:
		return larkcore.LogLevelInfo
	case level <= slog.LevelWarn:
		return larkcore.LogLevelWarn
	default:
		return larkcore.LogLevelError
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
