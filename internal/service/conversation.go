package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
)

const (
	reactionWorking = "OnIt"

	replyUnavailable = "The completion service is unavailable right now, please try again later."
)

// ConversationService handles conversation logic
type ConversationService struct {
	convUC      *usecase.ConversationUsecase
	replyUC     *usecase.ReplyUsecase
	messageRepo repo.MessageRepo
	logger      *slog.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	convUC *usecase.ConversationUsecase,
	replyUC *usecase.ReplyUsecase,
	messageRepo repo.MessageRepo,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		convUC:      convUC,
		replyUC:     replyUC,
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// ShouldRespond reports whether msg is addressed to the bot
func (s *ConversationService) ShouldRespond(msg *domain.Message) bool {
	return s.convUC.ShouldRespond(msg)
}

// HandleMessage answers one message and sends the reply back to where it came
// from. Failures of the pipeline become chat replies; only a failed send is
// returned.
func (s *ConversationService) HandleMessage(ctx context.Context, msg *domain.Message) error {
	if err := s.messageRepo.AddReaction(ctx, msg.ID, reactionWorking); err != nil {
		s.logger.Debug("add reaction failed", "msg_id", msg.ID, "error", err)
	}

	var reply string
	resp, err := s.convUC.Trigger(ctx, msg)
	if err != nil {
		s.logger.Warn("trigger failed", "msg_id", msg.ID, "chat_id", msg.ChatID, "error", err)
		reply = replyForError(err)
	} else {
		reply = resp.Reply
		s.logger.Info("answered",
			"msg_id", msg.ID,
			"chat_id", msg.ChatID,
			"model", resp.Model,
			"directive", resp.Directive,
			"prompt_tokens", resp.PromptTokens)
	}

	if err := s.replyUC.Dispatch(ctx, msg, reply); err != nil {
		return fmt.Errorf("dispatch reply to %s: %w", msg.ID, err)
	}
	return nil
}

// replyForError turns a pipeline error into the text shown in chat
func replyForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedModel):
		return "That model is not supported."
	case errors.Is(err, domain.ErrReservedName):
		return "That name is reserved for a directive, please choose another one."
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Sorry, only administrators can change contexts."
	case errors.Is(err, domain.ErrInvalidArgument):
		return "Invalid command: " + detail(err, domain.ErrInvalidArgument)
	case errors.Is(err, domain.ErrPromptTooLarge):
		return "The contexts and message are too long for the model, please shorten them."
	default:
		// TransportError, ModelError and anything unexpected
		return replyUnavailable
	}
}

// detail returns the text wrapped after sentinel in err's message
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
