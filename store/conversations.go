package store

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/smartfarmlink/smartfarm-backend-go/database"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/metrics"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

func ConversationPath(id string) string {
	return "conversations_meta/" + id
}

func UserConversationsPath(userID string) string {
	return "user_conversations/" + userID
}

type ConversationRepository struct {
	ds         database.DocumentStore
	maxRetries int
	now        func() time.Time
}

func NewConversationRepository(ds database.DocumentStore, maxRetries int) *ConversationRepository {
	return &ConversationRepository{ds: ds, maxRetries: maxRetries, now: time.Now}
}

// GetOrCreate returns the conversation for the buyer/farmer/product triple,
// creating it and indexing it for both participants if it does not exist yet.
// The bool result reports whether this call created it.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, buyerID, farmerID, productID string) (*models.Conversation, bool, error) {
	buyerID = strings.TrimSpace(buyerID)
	farmerID = strings.TrimSpace(farmerID)
	productID = strings.TrimSpace(productID)
	switch {
	case buyerID == "":
		return nil, false, errs.Validation("buyerId is required")
	case farmerID == "":
		return nil, false, errs.Validation("farmerId is required")
	case productID == "":
		return nil, false, errs.Validation("productId is required")
	case !models.ValidKeyPart(buyerID):
		return nil, false, errs.Validation("buyerId %q must not contain '/' or '_'", buyerID)
	case !models.ValidKeyPart(farmerID):
		return nil, false, errs.Validation("farmerId %q must not contain '/' or '_'", farmerID)
	case !models.ValidKeyPart(productID):
		return nil, false, errs.Validation("productId %q must not contain '/' or '_'", productID)
	}

	key := models.ConversationKey(buyerID, farmerID, productID)
	existing, err := r.Get(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, false, err
	}

	now := r.now().UTC()
	conv := &models.Conversation{
		ID:           key,
		BuyerID:      buyerID,
		FarmerID:     farmerID,
		ProductID:    productID,
		Participants: []string{buyerID, farmerID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	version, err := r.ds.CompareAndSet(ctx, ConversationPath(key), 0, conv)
	if errors.Is(err, errs.ErrConflict) {
		// Someone else created it between our read and write.
		metrics.StoreConflicts.WithLabelValues("conversation_create").Inc()
		existing, err := r.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, errs.Storage("create conversation", err)
	}
	conv.Version = version

	for _, userID := range conv.Participants {
		if err := addToIndex(ctx, r.ds, UserConversationsPath(userID), key, r.maxRetries); err != nil {
			log.Printf("Failed to index conversation %s for user %s: %v", key, userID, err)
		}
	}
	return conv, true, nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	doc, err := r.ds.Get(ctx, ConversationPath(id))
	if err != nil {
		return nil, errs.Storage("get conversation", err)
	}
	if !doc.Exists {
		return nil, errs.NotFound("conversation %s not found", id)
	}

	var conv models.Conversation
	if err := doc.Decode(&conv); err != nil {
		return nil, errs.Storage("decode conversation "+id, err)
	}
	conv.Version = doc.Version
	return &conv, nil
}

// ListForUser returns the user's conversations in index order, skipping
// index entries whose conversation document is missing.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	ix, _, err := readIndex(ctx, r.ds, UserConversationsPath(userID))
	if err != nil {
		return nil, err
	}

	convs := make([]models.Conversation, 0, len(ix.IDs))
	for _, id := range ix.IDs {
		conv, err := r.Get(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			log.Printf("Skipping dangling conversation %s for user %s", id, userID)
			continue
		}
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, nil
}

// Touch moves the conversation's updatedAt forward to at. Older timestamps
// are ignored.
func (r *ConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	for attempt := 0; ; attempt++ {
		conv, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if !at.After(conv.UpdatedAt) {
			return nil
		}

		conv.UpdatedAt = at.UTC()
		_, err = r.ds.CompareAndSet(ctx, ConversationPath(id), conv.Version, conv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return errs.Storage("touch conversation", err)
		}

		metrics.StoreConflicts.WithLabelValues("conversation_touch").Inc()
		if attempt >= r.maxRetries {
			return errs.Exhausted("touch conversation "+id, err)
		}
	}
}
