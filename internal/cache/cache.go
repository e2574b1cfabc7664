package cache

import (
	"context"
	"time"

	"github.com/example/dispatch-engine/internal/client"
)

// ReceiptCache records provider receipts per dispatch contact so operators
// can look up what was sent without touching the provider again.
type ReceiptCache interface {
	StoreReceipt(ctx context.Context, dispatchID string, contactIndex int, r client.Receipt, sentAt time.Time) error
	GetReceipt(ctx context.Context, dispatchID string, contactIndex int) (*StoredReceipt, error)
}

type StoredReceipt struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SentAt         time.Time `json:"sentAt"`
}
