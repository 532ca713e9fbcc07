package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/infra/feishu"
)

const (
	// DefaultQueueSize bounds the events waiting for the worker
	DefaultQueueSize = 64

	seenTTL = 5 * time.Minute
)

// EventSource delivers chat messages to a registered handler
type EventSource interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
}

// ConversationHandler answers messages addressed to the bot
type ConversationHandler interface {
	ShouldRespond(msg *domain.Message) bool
	HandleMessage(ctx context.Context, msg *domain.Message) error
}

// FeishuServer handles Feishu message processing. The websocket callback only
// enqueues; one worker goroutine answers messages in arrival order.
type FeishuServer struct {
	source  EventSource
	handler ConversationHandler
	logger  *slog.Logger

	queue chan *domain.Message
	wg    sync.WaitGroup

	// Message deduplication cache
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
	now        func() time.Time
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source EventSource, handler ConversationHandler, queueSize int, logger *slog.Logger) *FeishuServer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &FeishuServer{
		source:   source,
		handler:  handler,
		logger:   logger,
		queue:    make(chan *domain.Message, queueSize),
		seenMsgs: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Start runs the worker and the event source. It blocks until the source
// stops or ctx is cancelled.
func (s *FeishuServer) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.worker(ctx)

	s.source.OnMessage(s.handleMessage)
	return s.source.Start(ctx)
}

// Wait blocks until the worker has finished the message in progress. The
// worker exits once the context passed to Start is cancelled.
func (s *FeishuServer) Wait() {
	s.wg.Wait()
}

func (s *FeishuServer) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			s.process(ctx, msg)
		}
	}
}

func (s *FeishuServer) process(ctx context.Context, msg *domain.Message) {
	start := time.Now()
	if err := s.handler.HandleMessage(ctx, msg); err != nil {
		s.logger.Error("handle message failed", "msg_id", msg.ID, "chat_id", msg.ChatID, "error", err)
		return
	}
	s.logger.Debug("message handled", "msg_id", msg.ID, "elapsed", time.Since(start))
}

// handleMessage handles Feishu messages
func (s *FeishuServer) handleMessage(raw *feishu.Message) {
	// Message deduplication: the platform redelivers events it considers unacknowledged
	if s.isMessageSeen(raw.MsgID) {
		s.logger.Debug("duplicate message ignored", "msg_id", raw.MsgID)
		return
	}
	s.markMessageSeen(raw.MsgID)

	msg := toDomain(raw)
	if !s.handler.ShouldRespond(msg) {
		return
	}

	s.logger.Info("message queued",
		"msg_id", msg.ID,
		"chat_id", msg.ChatID,
		"chat_type", msg.ChatType,
		"content", truncate(msg.Content, 50))

	select {
	case s.queue <- msg:
	default:
		s.logger.Warn("queue full, message dropped", "msg_id", msg.ID, "chat_id", msg.ChatID)
	}
}

func toDomain(raw *feishu.Message) *domain.Message {
	msg := &domain.Message{
		ID:          raw.MsgID,
		ChatID:      raw.ChatID,
		ChatType:    domain.ChatTypeGroup,
		ThreadID:    raw.ThreadID,
		Content:     raw.Content,
		MentionsBot: raw.MentionsBot,
	}
	if raw.ChatType == string(domain.ChatTypeP2P) {
		msg.ChatType = domain.ChatTypeP2P
	}
	if raw.CreateTime > 0 {
		msg.CreateTime = time.UnixMilli(raw.CreateTime)
	}
	if raw.Sender != nil {
		msg.SenderID = raw.Sender.SenderID
		msg.SenderType = raw.Sender.SenderType
	}
	return msg
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// isMessageSeen checks if a message has been processed
func (s *FeishuServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks a message as processed and forgets entries older
// than the redelivery window.
func (s *FeishuServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	now := s.now()
	s.seenMsgs[msgID] = now

	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
