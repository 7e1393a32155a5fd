package canvas

import (
	"context"
	"encoding/json"
	"sync"

	"canvaschat/internal/domain"
)

// ViewState is the local canvas state of one message.
type ViewState string

const (
	ViewClosed ViewState = "closed"
	ViewOpen   ViewState = "open"
)

type trigger int

const (
	activatedSelf trigger = iota
	activatedOther
	closedSelf
)

// viewTransitions is the per-message transition table. Triggers missing
// from a row leave the state unchanged.
var viewTransitions = map[ViewState]map[trigger]ViewState{
	ViewClosed: {
		activatedSelf: ViewOpen,
	},
	ViewOpen: {
		activatedOther: ViewClosed,
		closedSelf:     ViewClosed,
	},
}

// View mirrors one message's canvas visibility from the session bus.
type View struct {
	mu        sync.Mutex
	messageID string
	state     ViewState
	unsubs    []func()
}

// NewView subscribes a closed view for messageID. initial is the id of the
// currently active canvas so a view created while its message is open
// starts open.
func NewView(bus domain.EventBus, messageID, initial string) *View {
	v := &View{messageID: messageID, state: ViewClosed}
	if initial == messageID {
		v.state = ViewOpen
	}
	v.unsubs = []func(){
		bus.Subscribe(domain.EventCanvasActivated, v.onActivated),
		bus.Subscribe(domain.EventCanvasClosed, v.onClosed),
	}
	return v
}

// MessageID returns the message the view is bound to.
func (v *View) MessageID() string { return v.messageID }

// State returns the current local state.
func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Detach stops the view from reacting to further events.
func (v *View) Detach() {
	v.mu.Lock()
	unsubs := v.unsubs
	v.unsubs = nil
	v.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (v *View) onActivated(_ context.Context, e domain.Event) {
	p := decodeCanvasPayload(e)
	if p.MessageID == v.messageID {
		v.apply(activatedSelf)
		return
	}
	v.apply(activatedOther)
}

func (v *View) onClosed(_ context.Context, e domain.Event) {
	if decodeCanvasPayload(e).MessageID == v.messageID {
		v.apply(closedSelf)
	}
}

func (v *View) apply(t trigger) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if next, ok := viewTransitions[v.state][t]; ok {
		v.state = next
	}
}

func decodeCanvasPayload(e domain.Event) domain.CanvasEventPayload {
	var p domain.CanvasEventPayload
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	return p
}
