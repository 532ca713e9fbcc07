package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/repo"
)

// DefaultReplyChunkSize bounds the characters of one outbound message
const DefaultReplyChunkSize = 8000

// ReplyUsecase delivers replies to the place the trigger came from
type ReplyUsecase struct {
	messageRepo repo.MessageRepo
	chunkSize   int
}

// NewReplyUsecase creates a new reply usecase
func NewReplyUsecase(messageRepo repo.MessageRepo, chunkSize int) *ReplyUsecase {
	if chunkSize <= 0 {
		chunkSize = DefaultReplyChunkSize
	}
	return &ReplyUsecase{messageRepo: messageRepo, chunkSize: chunkSize}
}

// Dispatch sends text to the sender for direct messages, or to the channel
// and topic of the trigger otherwise.
func (uc *ReplyUsecase) Dispatch(ctx context.Context, trigger *domain.Message, text string) error {
	scope := domain.ScopeOf(trigger, false)
	for i, chunk := range splitReply(text, uc.chunkSize) {
		if err := uc.messageRepo.Send(ctx, scope, trigger, chunk); err != nil {
			return fmt.Errorf("send reply part %d: %w", i+1, err)
		}
	}
	return nil
}

// splitReply cuts text into pieces of at most size runes, preferring line
// breaks as cut points.
func splitReply(text string, size int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var parts []string
	for utf8.RuneCountInString(text) > size {
		cut := byteOffset(text, size)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}
