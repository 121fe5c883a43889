package utils

import (
	"github.com/google/uuid"
)

// IDGenerator hands out collision-resistant entity ids.
type IDGenerator interface {
	NewID() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// PrefixedIDs prefixes every generated id, e.g. "order_" + uuid.
type PrefixedIDs struct {
	Prefix string
	Next   IDGenerator
}

func (p PrefixedIDs) NewID() string {
	return p.Prefix + p.Next.NewID()
}
