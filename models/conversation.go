package models

import (
	"strings"
	"time"
)

// Conversation is keyed by buyerId_farmerId_productId, so the same triple
// always resolves to the same conversation. Ids in the triple may not contain
// an underscore, otherwise two triples could share a key.
type Conversation struct {
	ID           string    `bson:"id" json:"id"`
	BuyerID      string    `bson:"buyerId" json:"buyerId"`
	FarmerID     string    `bson:"farmerId" json:"farmerId"`
	ProductID    string    `bson:"productId" json:"productId"`
	Participants []string  `bson:"participants" json:"participants"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
	Version      int64     `bson:"-" json:"-"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func ConversationKey(buyerID, farmerID, productID string) string {
	return buyerID + "_" + farmerID + "_" + productID
}

// ValidKeyPart reports whether id can be one part of a conversation key.
func ValidKeyPart(id string) bool {
	return ValidID(id) && !strings.Contains(id, "_")
}
