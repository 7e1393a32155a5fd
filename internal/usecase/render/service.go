package render

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"canvaschat/internal/domain"
)

// DefaultCacheSize bounds the number of rendered messages kept in memory.
const DefaultCacheSize = 512

// Service derives RenderedMessages from message text. Results are cached by
// content hash; the returned value is shared and must not be mutated.
type Service struct {
	cache  *lru.Cache[string, *domain.RenderedMessage]
	logger *slog.Logger
}

// NewService creates a render service with an LRU of the given size.
func NewService(cacheSize int, logger *slog.Logger) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *domain.RenderedMessage](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{cache: cache, logger: logger}, nil
}

// Render segments text and derives its canvas files, classification,
// preview mode, bundle and run target.
func (s *Service) Render(text string) *domain.RenderedMessage {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])
	if rm, ok := s.cache.Get(key); ok {
		return rm
	}

	rm := Derive(text)
	if rm.AssemblyError != "" {
		s.logger.Debug("bundle assembly failed", "error", rm.AssemblyError)
	}
	s.cache.Add(key, rm)
	return rm
}

// Len returns the number of cached renders.
func (s *Service) Len() int { return s.cache.Len() }

// Derive is the uncached render pipeline.
func Derive(text string) *domain.RenderedMessage {
	files := ExtractFiles(text)
	rm := &domain.RenderedMessage{
		Segments:    Segment(text),
		Files:       FileEntries(files),
		ComponentUI: IsComponentUI(files),
	}
	if rm.Segments == nil {
		rm.Segments = []domain.Segment{}
	}

	rm.Mode, rm.Run = PlanFor(files, rm.ComponentUI)
	if rm.Mode == domain.PreviewComponent {
		bundle, err := Assemble(files)
		if err != nil {
			rm.AssemblyError = assemblyMessage(err)
		} else {
			rm.Bundle = &bundle
		}
	}
	return rm
}

func assemblyMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoComponent):
		return domain.ErrNoComponent.Error()
	case errors.Is(err, domain.ErrNoValidComponent):
		return domain.ErrNoValidComponent.Error()
	}
	return err.Error()
}

// PlanFor picks how the canvas previews a file set: component bundles and
// markup documents render in the sandbox; otherwise the first runnable
// source goes to the remote executor.
func PlanFor(files []domain.CodeFile, componentUI bool) (domain.PreviewMode, *domain.RunTarget) {
	if len(files) == 0 {
		return domain.PreviewNone, nil
	}
	if componentUI {
		return domain.PreviewComponent, nil
	}
	for _, f := range files {
		if lang := NormalizeLanguage(f.Language); lang == "html" || lang == "css" {
			return domain.PreviewMarkup, nil
		}
	}
	for _, f := range files {
		lang := NormalizeLanguage(f.Language)
		if generalLanguages[lang] || isScriptLanguage(lang) {
			return domain.PreviewRun, &domain.RunTarget{
				Language:   lang,
				Source:     f.Content,
				NeedsInput: NeedsInput(lang, f.Content),
			}
		}
	}
	return domain.PreviewNone, nil
}
