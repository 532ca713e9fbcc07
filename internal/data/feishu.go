package data

import (
	"context"
	"log/slog"
	"time"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/feishu"
)

// FeishuClient is the part of the Feishu client the repository uses
type FeishuClient interface {
	ListMessages(ctx context.Context, containerType, containerID string, before time.Time, limit int) ([]*feishu.HistoryMessage, error)
	SendText(ctx context.Context, receiveIDType, receiveID, text string) error
	ReplyText(ctx context.Context, messageID, text string, inThread bool) error
	AddReaction(ctx context.Context, messageID, emojiType string) error
	IsTenantManager(ctx context.Context, openID string) (bool, error)
	Authorize(ctx context.Context) error
	AppID() string
}

// feishuRepo implements the Feishu message repository
type feishuRepo struct {
	client FeishuClient
	logger *slog.Logger
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client FeishuClient, logger *slog.Logger) repo.MessageRepo {
	return &feishuRepo{client: client, logger: logger}
}

// FetchMessages gets the messages of a scope up to the anchor
func (r *feishuRepo) FetchMessages(ctx context.Context, scope domain.Scope, anchor *domain.Message, limit int) ([]domain.Message, error) {
	containerType, containerID := feishu.ContainerChat, scope.ChatID
	if scope.Kind == domain.ScopeTopic {
		containerType, containerID = feishu.ContainerThread, scope.ThreadID
	}

	var before time.Time
	if anchor != nil {
		before = anchor.CreateTime
	}

	// One extra so the anchor itself does not eat into the limit
	msgs, err := r.client.ListMessages(ctx, containerType, containerID, before, limit+1)
	if err != nil {
		return nil, err
	}

	chatType := domain.ChatTypeGroup
	if scope.Kind == domain.ScopeDirect {
		chatType = domain.ChatTypeP2P
	}

	result := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		createTime := time.UnixMilli(m.CreateTime)
		if !before.IsZero() && createTime.After(before) {
			continue
		}
		msg := domain.Message{
			ID:         m.MsgID,
			ChatID:     scope.ChatID,
			ChatType:   chatType,
			ThreadID:   m.ThreadID,
			Content:    m.Content,
			CreateTime: createTime,
		}
		if m.Sender != nil {
			msg.SenderID = m.Sender.SenderID
			msg.SenderType = m.Sender.SenderType
		}
		result = append(result, msg)
	}

	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// Send sends text to the scope
func (r *feishuRepo) Send(ctx context.Context, scope domain.Scope, anchor *domain.Message, text string) error {
	switch scope.Kind {
	case domain.ScopeDirect:
		if scope.PeerID != "" {
			return r.client.SendText(ctx, "open_id", scope.PeerID, text)
		}
		return r.client.SendText(ctx, "chat_id", scope.ChatID, text)
	case domain.ScopeTopic:
		if anchor != nil && anchor.ID != "" {
			return r.client.ReplyText(ctx, anchor.ID, text, true)
		}
		r.logger.Warn("topic reply without anchor, sending to chat", "chat_id", scope.ChatID)
		return r.client.SendText(ctx, "chat_id", scope.ChatID, text)
	default:
		return r.client.SendText(ctx, "chat_id", scope.ChatID, text)
	}
}

// AddReaction adds an emoji reaction
func (r *feishuRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	return r.client.AddReaction(ctx, msgID, reactionType)
}

// BotIdentity returns the app ID, the sender ID of the bot's own messages
func (r *feishuRepo) BotIdentity() string {
	return r.client.AppID()
}

// IsPrivileged reports whether the user is a tenant manager
func (r *feishuRepo) IsPrivileged(ctx context.Context, userID string) (bool, error) {
	return r.client.IsTenantManager(ctx, userID)
}

// Authorize verifies the app credentials
func (r *feishuRepo) Authorize(ctx context.Context) error {
	return r.client.Authorize(ctx)
}
