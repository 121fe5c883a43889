// Package chat appends messages to a conversation's real-time list and drives
// each message through waiting, sent, delivered and seen.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/smartfarmlink/smartfarm-backend-go/database"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/metrics"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
	"github.com/smartfarmlink/smartfarm-backend-go/utils"
)

// Conversations is the subset of store.ConversationRepository the service uses.
type Conversations interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

func MessagesPath(conversationID string) string {
	return "messages/" + conversationID
}

type Options struct {
	SentDelay      time.Duration
	DeliveredDelay time.Duration
}

// Service owns message status changes. Writes to one conversation's list are
// serialized in-process so status updates never race each other.
type Service struct {
	convs Conversations
	lists database.ListStore
	ids   utils.IDGenerator
	opts  Options
	now   func() time.Time

	locks sync.Map // conversation id -> *sync.Mutex

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewService(convs Conversations, lists database.ListStore, ids utils.IDGenerator, opts Options) *Service {
	return &Service{
		convs:  convs,
		lists:  lists,
		ids:    ids,
		opts:   opts,
		now:    time.Now,
		timers: make(map[*time.Timer]struct{}),
	}
}

type SendInput struct {
	SenderID   string
	SenderName string
	Content    string
}

// Send appends a waiting message to the conversation and schedules its move
// to sent and then delivered.
func (s *Service) Send(ctx context.Context, conversationID string, in SendInput) (*models.Message, error) {
	in.SenderID = strings.TrimSpace(in.SenderID)
	if in.SenderID == "" {
		return nil, errs.Validation("senderId is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, errs.Validation("content is required")
	}

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, errs.Validation("%s is not a participant of conversation %s", in.SenderID, conversationID)
	}

	now := s.now().UTC()
	msg := &models.Message{
		ID:         s.ids.NewID(),
		SenderID:   in.SenderID,
		SenderName: in.SenderName,
		Content:    in.Content,
		Timestamp:  now,
		Status:     models.MessageStatusWaiting,
	}

	unlock := s.lock(conversationID)
	index, err := s.lists.Append(ctx, MessagesPath(conversationID), msg)
	unlock()
	if err != nil {
		return nil, errs.Storage("append message", err)
	}

	if err := s.convs.Touch(ctx, conversationID, now); err != nil {
		log.Printf("Failed to touch conversation %s: %v", conversationID, err)
	}

	s.schedule(s.opts.SentDelay, conversationID, index, msg.ID, models.MessageStatusSent)
	s.schedule(s.opts.DeliveredDelay, conversationID, index, msg.ID, models.MessageStatusDelivered)
	return msg, nil
}

// Messages returns the conversation's messages in send order.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := s.convs.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	items, err := s.lists.Range(ctx, MessagesPath(conversationID))
	if err != nil {
		return nil, errs.Storage("list messages", err)
	}
	return decodeMessages(items)
}

// MarkSeen moves every message in the conversation not sent by readerID to
// seen and returns how many changed. Only participants can mark messages seen.
func (s *Service) MarkSeen(ctx context.Context, conversationID, readerID string) (int, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return 0, errs.Validation("userId is required")
	}
	if err := s.CheckReader(ctx, conversationID, readerID); err != nil {
		return 0, err
	}
	return s.markSeen(ctx, conversationID, readerID)
}

// CheckReader returns a not-found error if the conversation does not exist
// and a validation error if readerID is set but not one of its participants.
func (s *Service) CheckReader(ctx context.Context, conversationID, readerID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if readerID != "" && !conv.HasParticipant(readerID) {
		return errs.Validation("%s is not a participant of conversation %s", readerID, conversationID)
	}
	return nil
}

func (s *Service) markSeen(ctx context.Context, conversationID, readerID string) (int, error) {
	unlock := s.lock(conversationID)
	defer unlock()

	path := MessagesPath(conversationID)
	items, err := s.lists.Range(ctx, path)
	if err != nil {
		return 0, errs.Storage("list messages", err)
	}
	msgs, err := decodeMessages(items)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	changed := 0
	for i := range msgs {
		if msgs[i].SenderID == readerID {
			continue
		}
		if !Advance(&msgs[i], models.MessageStatusSeen, now) {
			continue
		}
		if err := s.lists.Replace(ctx, path, int64(i), msgs[i]); err != nil {
			return changed, errs.Storage("update message", err)
		}
		metrics.MessageTransitions.WithLabelValues(string(models.MessageStatusSeen)).Inc()
		changed++
	}
	return changed, nil
}

// Watch streams the conversation's messages to fn on every change until the
// returned function is called or ctx ends. A non-empty readerID has the
// conversation open: foreign messages are marked seen as they arrive, and fn
// receives the list after that update. A readerID outside the conversation
// is rejected.
func (s *Service) Watch(ctx context.Context, conversationID, readerID string, fn func([]models.Message)) (func(), error) {
	if err := s.CheckReader(ctx, conversationID, readerID); err != nil {
		return nil, err
	}

	return s.lists.Subscribe(ctx, MessagesPath(conversationID), func(items [][]byte) {
		msgs, err := decodeMessages(items)
		if err != nil {
			log.Printf("Dropping undecodable message list for %s: %v", conversationID, err)
			return
		}

		if readerID != "" && hasUnseenFrom(msgs, readerID) {
			changed, err := s.markSeen(ctx, conversationID, readerID)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Failed to mark %s seen for %s: %v", conversationID, readerID, err)
			}
			if changed > 0 {
				// The seen update triggers another delivery.
				return
			}
		}
		fn(msgs)
	})
}

// Close stops pending status timers. Messages they would have advanced stay
// at their current status.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
}

func (s *Service) schedule(delay time.Duration, conversationID string, index int64, messageID string, to models.MessageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.advance(ctx, conversationID, index, messageID, to); err != nil {
			log.Printf("Failed to mark message %s %s: %v", messageID, to, err)
		}
	})
	s.timers[t] = struct{}{}
}

func (s *Service) advance(ctx context.Context, conversationID string, index int64, messageID string, to models.MessageStatus) error {
	unlock := s.lock(conversationID)
	defer unlock()

	path := MessagesPath(conversationID)
	items, err := s.lists.Range(ctx, path)
	if err != nil {
		return err
	}
	if index >= int64(len(items)) {
		return errs.NotFound("message %s not found", messageID)
	}

	var msg models.Message
	if err := json.Unmarshal(items[index], &msg); err != nil {
		return err
	}
	if msg.ID != messageID {
		return errs.NotFound("message %s not found at index %d", messageID, index)
	}
	if !Advance(&msg, to, s.now().UTC()) {
		return nil
	}
	if err := s.lists.Replace(ctx, path, index, msg); err != nil {
		return err
	}
	metrics.MessageTransitions.WithLabelValues(string(to)).Inc()
	return nil
}

func (s *Service) lock(conversationID string) func() {
	v, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func hasUnseenFrom(msgs []models.Message, readerID string) bool {
	for _, m := range msgs {
		if m.SenderID != readerID && m.Status != models.MessageStatusSeen {
			return true
		}
	}
	return false
}

func decodeMessages(items [][]byte) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(items))
	for _, item := range items {
		var msg models.Message
		if err := json.Unmarshal(item, &msg); err != nil {
			return nil, errs.Storage("decode message", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
