package chat

import (
	"context"
	"errors"
	"strings"

	"canvaschat/internal/domain"
)

// List returns the user's conversations, most recently updated first,
// without messages.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, domain.WrapOp("Chat.List", err)
	}
	if s.cfg.HistoryLimit > 0 && len(convs) > s.cfg.HistoryLimit {
		convs = convs[:s.cfg.HistoryLimit]
	}
	return convs, nil
}

// Get loads one conversation with its messages.
func (s *Service) Get(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	return s.load(ctx, userID, conversationID)
}

// Switch makes conversationID the surface's current conversation and
// returns it. An empty id switches to a blank new-conversation view.
func (s *Service) Switch(ctx context.Context, surface Surface, userID, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		surface.SwitchConversation(ctx, "")
		return &domain.Conversation{UserID: userID}, nil
	}
	conv, err := s.load(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	surface.SwitchConversation(ctx, conv.ID)
	return conv, nil
}

// Delete removes one conversation. Deleting the current conversation
// switches the surface to a blank view.
func (s *Service) Delete(ctx context.Context, surface Surface, userID, conversationID string) error {
	if _, err := s.load(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return domain.WrapOp("Chat.Delete", err)
	}
	if surface.ConversationID() == conversationID {
		surface.SwitchConversation(ctx, "")
	}
	s.publish(ctx, domain.EventConversationDeleted, domain.MessageEventPayload{ConversationID: conversationID})
	return nil
}

// DeleteAll removes every conversation of the user.
func (s *Service) DeleteAll(ctx context.Context, surface Surface, userID string) error {
	if err := s.store.DeleteAllConversations(ctx, userID); err != nil {
		return domain.WrapOp("Chat.DeleteAll", err)
	}
	surface.SwitchConversation(ctx, "")
	s.publish(ctx, domain.EventConversationDeleted, domain.MessageEventPayload{})
	return nil
}

// Profile returns the user's profile, or defaults when none is stored.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) || errors.Is(err, domain.ErrNotFound) {
			return &domain.Profile{UserID: userID, Language: "en", Theme: "system"}, nil
		}
		return nil, domain.WrapOp("Chat.Profile", err)
	}
	return p, nil
}

// UpdateProfile stores p for userID. Empty fields keep their stored values.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p domain.Profile) (*domain.Profile, error) {
	cur, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(p.DisplayName); v != "" {
		cur.DisplayName = v
	}
	if p.Language != "" {
		cur.Language = p.Language
	}
	if p.Theme != "" {
		cur.Theme = p.Theme
	}
	cur.UserID = userID
	cur.UpdatedAt = s.now()
	if err := s.store.UpsertProfile(ctx, cur); err != nil {
		return nil, domain.WrapOp("Chat.UpdateProfile", err)
	}
	return cur, nil
}

// Usage returns today's usage record of the user.
func (s *Service) Usage(ctx context.Context, userID string) (domain.Usage, error) {
	u, err := s.store.GetUsage(ctx, userID, s.day())
	if err != nil {
		return domain.Usage{}, domain.WrapOp("Chat.Usage", err)
	}
	return u, nil
}
