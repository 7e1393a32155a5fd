package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/tracer"
)

// EmptyReplyText stands in for an AI reply with an empty body.
const EmptyReplyText = "The assistant returned an empty response."

// Surface is the page session a request comes from.
type Surface interface {
	ConversationID() string
	SwitchConversation(ctx context.Context, conversationID string)
	AutoOpen(ctx context.Context, messageID string, eligible bool) bool
	MessageReplaced(ctx context.Context, oldID string)
}

// Renderer derives the render model of a message.
type Renderer interface {
	Render(text string) *domain.RenderedMessage
}

// Config tunes the chat service.
type Config struct {
	DailyQuota   int // 0 disables the quota
	HistoryLimit int // max conversations listed, 0 for all
}

// Result is the outcome of one question/answer exchange.
//
// A webhook or persistence failure after the question was accepted is not
// returned as an error: Reply carries StatusFailed and Error describes the
// failure, and the pending placeholder is gone from the stored conversation.
type Result struct {
	Conversation *domain.Conversation    `json:"conversation"`
	Question     domain.Message          `json:"question"`
	Reply        domain.Message          `json:"reply"`
	Rendered     *domain.RenderedMessage `json:"rendered,omitempty"`
	Stale        bool                    `json:"stale,omitempty"`
	CanvasOpened bool                    `json:"canvas_opened,omitempty"`
	Replaced     string                  `json:"replaced,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// Service runs the chat flows against the store and the AI webhook.
type Service struct {
	store    domain.ConversationStore
	ai       domain.AIClient
	renderer Renderer
	bus      domain.EventBus
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
	locks    *conversationLocker

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewService creates a chat service. bus may be nil.
func NewService(store domain.ConversationStore, ai domain.AIClient, renderer Renderer, bus domain.EventBus, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		ai:       ai,
		renderer: renderer,
		bus:      bus,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		locks:    newConversationLocker(),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Send asks question in conversationID, or in a new conversation when
// conversationID is empty. A new conversation becomes the surface's
// current one.
func (s *Service) Send(ctx context.Context, surface Surface, userID, conversationID, question string) (*Result, error) {
	ctx, span := tracer.StartSpan(ctx, "chat.send",
		trace.WithAttributes(tracer.StringAttr("conversation.id", conversationID)))
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.NewDomainError("Chat.Send", domain.ErrEmptyQuestion, "")
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var conv *domain.Conversation
	created := false
	if conversationID == "" {
		now := s.now()
		conv = &domain.Conversation{
			ID:        s.newID(now),
			UserID:    userID,
			Title:     Title(question),
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
	} else {
		unlock, err := s.locks.Lock(ctx, conversationID)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, domain.WrapOp("Chat.Send", err)
		}
		defer unlock()
		if conv, err = s.load(ctx, userID, conversationID); err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}
	}

	userMsg := s.message(conv.ID, domain.RoleUser, question, domain.StatusComplete)
	conv.Messages = append(conv.Messages, userMsg)

	res, err := s.exchange(ctx, surface, conv, userMsg, created)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return res, nil
}

// Edit replaces the content of a user message, drops everything after it
// and asks again. The assistant message that followed it is reported as
// replaced so its canvas closes.
func (s *Service) Edit(ctx context.Context, surface Surface, userID, conversationID, messageID, content string) (*Result, error) {
	ctx, span := tracer.StartSpan(ctx, "chat.edit",
		trace.WithAttributes(tracer.StringAttr("conversation.id", conversationID)))
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewDomainError("Chat.Edit", domain.ErrEmptyQuestion, "")
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, conversationID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Chat.Edit", err)
	}
	defer unlock()
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	idx := -1
	for i, m := range conv.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewDomainError("Chat.Edit", domain.ErrMessageNotFound, messageID)
	}
	if conv.Messages[idx].Role != domain.RoleUser {
		return nil, domain.NewDomainError("Chat.Edit", domain.ErrNotUserMessage, messageID)
	}

	var replaced string
	if next := idx + 1; next < len(conv.Messages) && conv.Messages[next].Role == domain.RoleAssistant {
		replaced = conv.Messages[next].ID
	}

	edited := conv.Messages[idx]
	edited.Content = content
	conv.Messages = append(conv.Messages[:idx:idx], edited)
	if firstUserIndex(conv.Messages) == idx {
		conv.Title = Title(content)
	}

	if replaced != "" {
		surface.MessageReplaced(ctx, replaced)
		s.publish(ctx, domain.EventMessageReplaced, domain.MessageEventPayload{ConversationID: conv.ID, MessageID: replaced})
	}

	res, err := s.exchange(ctx, surface, conv, edited, false)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	res.Replaced = replaced
	tracer.SetOK(span)
	return res, nil
}

// exchange persists conv with a pending placeholder, asks the webhook and
// reconciles the placeholder with the outcome. conv.Messages must end with
// the question and the caller holds the conversation lock. Reconciliation
// outlives ctx so a client that goes away mid-answer leaves no placeholder.
func (s *Service) exchange(ctx context.Context, surface Surface, conv *domain.Conversation, question domain.Message, created bool) (*Result, error) {
	pending := s.message(conv.ID, domain.RoleAssistant, "", domain.StatusPending)
	conv.Messages = append(conv.Messages, pending)
	conv.UpdatedAt = s.now()

	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, domain.WrapOp("Chat.Send", err)
	}
	if created {
		s.publish(ctx, domain.EventConversationCreated, domain.MessageEventPayload{ConversationID: conv.ID})
		surface.SwitchConversation(ctx, conv.ID)
	}
	s.publish(ctx, domain.EventMessageReceived, domain.MessageEventPayload{ConversationID: conv.ID, MessageID: question.ID})

	if _, err := s.store.IncrementUsage(ctx, conv.UserID, s.day()); err != nil {
		s.logger.Warn("usage increment failed", "user_id", conv.UserID, "error", err)
	}

	res := &Result{Conversation: conv, Question: question}

	reply, err := s.ai.Ask(ctx, question.Content)
	ctx = context.WithoutCancel(ctx)
	s.publish(ctx, domain.EventWebhookCalled, domain.MessageEventPayload{ConversationID: conv.ID, MessageID: pending.ID})
	if err != nil {
		return s.rollback(ctx, res, pending, err), nil
	}

	answer := pending
	answer.Status = domain.StatusComplete
	answer.Content = reply.Text
	if reply.Empty || strings.TrimSpace(reply.Text) == "" {
		answer.Content = EmptyReplyText
	}
	conv.Messages[len(conv.Messages)-1] = answer
	conv.UpdatedAt = s.now()

	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return s.rollback(ctx, res, pending, err), nil
	}

	res.Reply = answer
	res.Rendered = s.renderer.Render(answer.Content)

	if current := surface.ConversationID(); current != conv.ID {
		res.Stale = true
		s.logger.Info("reply arrived for a conversation no longer shown",
			"conversation_id", conv.ID, "current_conversation_id", current)
		s.publish(ctx, domain.EventMessageStale, domain.MessageEventPayload{ConversationID: conv.ID, MessageID: answer.ID})
		return res, nil
	}

	res.CanvasOpened = surface.AutoOpen(ctx, answer.ID, res.Rendered.HasCanvas())
	s.publish(ctx, domain.EventMessageAnswered, domain.MessageEventPayload{ConversationID: conv.ID, MessageID: answer.ID})
	return res, nil
}

// rollback removes the pending placeholder from the stored conversation and
// turns it into a failed reply.
func (s *Service) rollback(ctx context.Context, res *Result, pending domain.Message, cause error) *Result {
	conv := res.Conversation
	conv.Messages = removeMessage(conv.Messages, pending.ID)
	conv.UpdatedAt = s.now()
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		s.logger.Error("rollback of pending reply failed",
			"conversation_id", conv.ID, "message_id", pending.ID, "error", err)
	}

	s.logger.Warn("reply failed", "conversation_id", conv.ID, "error", cause)
	s.publish(ctx, domain.EventMessageFailed, domain.MessageEventPayload{
		ConversationID: conv.ID, MessageID: pending.ID, Error: cause.Error(),
	})

	failed := pending
	failed.Status = domain.StatusFailed
	failed.Content = failureText(cause)
	res.Reply = failed
	res.Error = cause.Error()
	return res
}

func failureText(err error) string {
	switch {
	case errors.Is(err, domain.ErrCircuitOpen), errors.Is(err, domain.ErrRateLimit):
		return "The assistant is unavailable right now. Please try again in a moment."
	case errors.Is(err, domain.ErrTimeout):
		return "The assistant took too long to answer. Please try again."
	default:
		return "Something went wrong while getting an answer. Please try again."
	}
}

func (s *Service) checkQuota(ctx context.Context, userID string) error {
	if s.cfg.DailyQuota <= 0 {
		return nil
	}
	usage, err := s.store.GetUsage(ctx, userID, s.day())
	if err != nil {
		return domain.WrapOp("Chat.Quota", err)
	}
	if usage.Count >= s.cfg.DailyQuota {
		return domain.NewDomainError("Chat.Quota", domain.ErrQuotaExceeded,
			fmt.Sprintf("%d of %d messages used today", usage.Count, s.cfg.DailyQuota))
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConversationNotFound) {
			return nil, domain.NewDomainError("Chat.Load", domain.ErrConversationNotFound, conversationID)
		}
		return nil, domain.WrapOp("Chat.Load", err)
	}
	if conv.UserID != userID {
		return nil, domain.NewDomainError("Chat.Load", domain.ErrConversationNotFound, conversationID)
	}
	msgs, err := s.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, domain.WrapOp("Chat.Load", err)
	}
	conv.Messages = msgs
	return conv, nil
}

func (s *Service) message(conversationID, role, content string, status domain.MessageStatus) domain.Message {
	now := s.now()
	return domain.Message{
		ID:             s.newID(now),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Status:         status,
		CreatedAt:      now,
	}
}

func (s *Service) newID(t time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *Service) day() string {
	return s.now().UTC().Format("2006-01-02")
}

func (s *Service) publish(ctx context.Context, t domain.EventType, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, domain.NewEvent(t, "", payload))
}

func removeMessage(msgs []domain.Message, id string) []domain.Message {
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func firstUserIndex(msgs []domain.Message) int {
	for i, m := range msgs {
		if m.Role == domain.RoleUser {
			return i
		}
	}
	return -1
}
