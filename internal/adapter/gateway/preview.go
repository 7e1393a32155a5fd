package gateway

import (
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"

	"canvaschat/internal/adapter/sandbox"
	"canvaschat/internal/domain"
)

// DefaultPreviewCacheSize bounds the render models kept for the preview route.
const DefaultPreviewCacheSize = 512

type previewKey struct {
	userID    string
	messageID string
}

// PreviewCache keeps the render models of recently shown messages so the
// preview frame can load them by message id. A nil cache stores nothing.
type PreviewCache struct {
	cache *lru.Cache[previewKey, *domain.RenderedMessage]
}

// NewPreviewCache creates a cache of at most size entries.
func NewPreviewCache(size int) (*PreviewCache, error) {
	if size <= 0 {
		size = DefaultPreviewCacheSize
	}
	c, err := lru.New[previewKey, *domain.RenderedMessage](size)
	if err != nil {
		return nil, err
	}
	return &PreviewCache{cache: c}, nil
}

// Put records the render model of a message owned by userID.
func (p *PreviewCache) Put(userID, messageID string, rm *domain.RenderedMessage) {
	if p == nil || rm == nil {
		return
	}
	p.cache.Add(previewKey{userID, messageID}, rm)
}

// Get returns the render model of messageID if userID owns it.
func (p *PreviewCache) Get(userID, messageID string) (*domain.RenderedMessage, bool) {
	if p == nil {
		return nil, false
	}
	return p.cache.Get(previewKey{userID, messageID})
}

// previewHandler serves GET /api/v1/messages/{id}/preview: the sandbox
// document of a message shown earlier on this gateway, or of the message
// loaded from ?conversation_id= when it is not cached.
func previewHandler(deps HandlerDeps) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, client *ClientInfo) {
		id := r.PathValue("id")
		rm, ok := deps.Previews.Get(client.UserID, id)
		if !ok {
			conversationID := r.URL.Query().Get("conversation_id")
			if conversationID == "" {
				writeError(w, domain.NewDomainError("Gateway.Preview", domain.ErrMessageNotFound, id))
				return
			}
			var err error
			if rm, err = deps.renderStored(r.Context(), client.UserID, conversationID, id); err != nil {
				writeError(w, err)
				return
			}
		}

		doc, err := sandbox.Document(rm)
		if err != nil {
			writeError(w, err)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "text/html; charset=utf-8")
		h.Set("Content-Security-Policy", sandbox.ContentSecurityPolicy)
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}
