package chat

import (
	"context"
	"fmt"
	"sync"
)

// conversationLocker serializes exchanges on the same conversation so each
// one loads the snapshot the previous one saved.
type conversationLocker struct {
	mu    sync.Mutex
	locks map[string]*conversationMutex
}

type conversationMutex struct {
	mu       sync.Mutex
	refCount int
}

func newConversationLocker() *conversationLocker {
	return &conversationLocker{locks: make(map[string]*conversationMutex)}
}

// Lock blocks until the conversation is free or ctx is done. The returned
// unlock must be called exactly once.
func (l *conversationLocker) Lock(ctx context.Context, conversationID string) (unlock func(), err error) {
	l.mu.Lock()
	cm, ok := l.locks[conversationID]
	if !ok {
		cm = &conversationMutex{}
		l.locks[conversationID] = cm
	}
	cm.refCount++
	l.mu.Unlock()

	release := func() {
		cm.mu.Unlock()
		l.mu.Lock()
		cm.refCount--
		if cm.refCount == 0 {
			delete(l.locks, conversationID)
		}
		l.mu.Unlock()
	}

	acquired := make(chan struct{})
	go func() {
		cm.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return release, nil
	case <-ctx.Done():
		// The pending Lock still completes; hand it straight back.
		go func() {
			<-acquired
			release()
		}()
		return nil, fmt.Errorf("conversation lock: %w", ctx.Err())
	}
}

// holders reports how many callers hold or wait for conversationID.
func (l *conversationLocker) holders(conversationID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cm, ok := l.locks[conversationID]; ok {
		return cm.refCount
	}
	return 0
}
