package repo

import (
	"context"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
)

// MessageRepo is the message repository interface
// Responsible for talking to the messaging platform
type MessageRepo interface {
	// FetchMessages gets up to limit messages of the scope created no later
	// than the anchor, oldest first. The anchor itself may be included.
	// Fetches in real-time from the platform, does not rely on local storage
	FetchMessages(ctx context.Context, scope domain.Scope, anchor *domain.Message, limit int) ([]domain.Message, error)

	// Send delivers text to the scope. For topic scopes the reply is threaded
	// under the anchor message
	Send(ctx context.Context, scope domain.Scope, anchor *domain.Message, text string) error

	// AddReaction adds an emoji reaction
	AddReaction(ctx context.Context, msgID, reactionType string) error

	// BotIdentity returns the sender ID the platform uses for the bot's own messages
	BotIdentity() string

	// IsPrivileged reports whether the user may administer the bot
	IsPrivileged(ctx context.Context, userID string) (bool, error)

	// Authorize verifies the app credentials and resolves the bot identity
	Authorize(ctx context.Context) error
}
