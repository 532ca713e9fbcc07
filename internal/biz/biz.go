package biz

import (
	"github.com/DevRickLin/feishu-gpt-bridge/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Estimator    *usecase.TokenEstimator
	Contexts     *usecase.ContextStoreUsecase
	History      *usecase.HistoryUsecase
	Summarize    *usecase.SummarizeUsecase
	Reply        *usecase.ReplyUsecase
	Conversation *usecase.ConversationUsecase
}
