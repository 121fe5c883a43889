package models

import (
	"time"
)

type MessageStatus string

const (
	MessageStatusWaiting   MessageStatus = "waiting"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusSeen      MessageStatus = "seen"
)

type Message struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"senderId"`
	SenderName  string        `json:"senderName"`
	Content     string        `json:"content"`
	Timestamp   time.Time     `json:"timestamp"`
	Status      MessageStatus `json:"status"`
	SentAt      *time.Time    `json:"sentAt"`
	DeliveredAt *time.Time    `json:"deliveredAt"`
	SeenAt      *time.Time    `json:"seenAt"`
}
