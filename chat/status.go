package chat

import (
	"time"

	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

func rank(s models.MessageStatus) int {
	switch s {
	case models.MessageStatusWaiting:
		return 0
	case models.MessageStatusSent:
		return 1
	case models.MessageStatusDelivered:
		return 2
	case models.MessageStatusSeen:
		return 3
	}
	return -1
}

// Advance moves m forward to status to and reports whether anything changed.
// Statuses never move backward. Every timestamp up to and including the new
// status is set if it was unset, so sentAt <= deliveredAt <= seenAt holds
// even when a message jumps straight to seen.
func Advance(m *models.Message, to models.MessageStatus, now time.Time) bool {
	target := rank(to)
	if target <= 0 || target <= rank(m.Status) {
		return false
	}

	stamp := func(field **time.Time) {
		if *field == nil {
			t := now
			*field = &t
		}
	}
	if target >= rank(models.MessageStatusSent) {
		stamp(&m.SentAt)
	}
	if target >= rank(models.MessageStatusDelivered) {
		stamp(&m.DeliveredAt)
	}
	if target >= rank(models.MessageStatusSeen) {
		stamp(&m.SeenAt)
	}
	m.Status = to
	return true
}
