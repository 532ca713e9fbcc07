package feishu

import (
	"context"
	"fmt"
	"strconv"
	"time"

	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// Container types accepted by ListMessages
const (
	ContainerChat   = "chat"
	ContainerThread = "thread"
)

// maxPageSize is the largest page the list API returns
const maxPageSize = 50

// HistoryMessage represents a message from chat history
type HistoryMessage struct {
	MsgID      string
	MsgType    string
	ThreadID   string
	Content    string
	CreateTime int64 // milliseconds
	Sender     *Sender
}

// ListMessages retrieves up to limit messages of a chat or thread created no
// later than before, paging as needed.
// Returns messages in chronological order (oldest first, newest last)
func (c *Client) ListMessages(ctx context.Context, containerType, containerID string, before time.Time, limit int) ([]*HistoryMessage, error) {
	var (
		messages  []*HistoryMessage
		pageToken string
	)

	for len(messages) < limit {
		pageSize := min(limit-len(messages), maxPageSize)

		// Use ByCreateTimeDesc to get latest messages (descending: newest first)
		builder := larkim.NewListMessageReqBuilder().
			ContainerIdType(containerType).
			ContainerId(containerID).
			SortType("ByCreateTimeDesc").
			PageSize(pageSize)
		if !before.IsZero() && containerType == ContainerChat {
			builder = builder.EndTime(strconv.FormatInt(before.Unix(), 10))
		}
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.Message.List(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("list messages failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("list messages error %d: %s", resp.Code, resp.Msg)
		}

		for _, item := range resp.Data.Items {
			messages = append(messages, toHistoryMessage(item))
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore || deref(resp.Data.PageToken) == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	if len(messages) > limit {
		messages = messages[:limit]
	}

	// Reverse to chronological order (oldest first, newest last)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	c.logger.Debug("messages listed", "container", containerType, "container_id", containerID, "count", len(messages))
	return messages, nil
}

func toHistoryMessage(item *larkim.Message) *HistoryMessage {
	msg := &HistoryMessage{
		MsgID:    deref(item.MessageId),
		MsgType:  deref(item.MsgType),
		ThreadID: deref(item.ThreadId),
	}
	if ts, err := strconv.ParseInt(deref(item.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}

	// Build mention map so @_user_N placeholders resolve to real names
	mentionMap := make(map[string]string)
	for _, mention := range item.Mentions {
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	if item.Body != nil && item.Body.Content != nil {
		if content, ok := parseContent(msg.MsgType, *item.Body.Content, mentionMap); ok {
			msg.Content = content
		}
	}

	if item.Sender != nil {
		msg.Sender = &Sender{
			SenderID:   deref(item.Sender.Id),
			SenderType: deref(item.Sender.SenderType),
			TenantKey:  deref(item.Sender.TenantKey),
		}
	}
	return msg
}

// SendText sends a text message. receiveIDType is chat_id or open_id
func (c *Client) SendText(ctx context.Context, receiveIDType, receiveID, text string) error {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error %d: %s", resp.Code, resp.Msg)
	}

	c.logger.Debug("message sent", "receive_id_type", receiveIDType, "receive_id", receiveID)
	return nil
}

// ReplyText replies to a message, optionally inside its topic thread
func (c *Client) ReplyText(ctx context.Context, messageID, text string, inThread bool) error {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			ReplyInThread(inThread).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("reply message error %d: %s", resp.Code, resp.Msg)
	}

	c.logger.Debug("reply sent", "msg_id", messageID, "in_thread", inThread)
	return nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error %d: %s", resp.Code, resp.Msg)
	}
	return nil
}

// IsTenantManager reports whether the user administers the tenant
func (c *Client) IsTenantManager(ctx context.Context, openID string) (bool, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()

	resp, err := c.larkCli.Contact.User.Get(ctx, req)
	if err != nil {
		return false, fmt.Errorf("get user failed: %w", err)
	}
	if !resp.Success() {
		return false, fmt.Errorf("get user error %d: %s", resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil || resp.Data.User.IsTenantManager == nil {
		return false, nil
	}
	return *resp.Data.User.IsTenantManager, nil
}
