// Package events carries UI notifications between the selection store, the
// download flow and whatever renders them.
package events

import (
	"sync"

	"github.com/subgrab/subgrab/internal/models"
)

// Kind enumerates the events a Bus can carry.
type Kind int

const (
	SubtitleSelected Kind = iota + 1
	SubtitleRemoved
	SelectionCleared
	SearchCompleted
	ShowToast
)

var kindNames = map[Kind]string{
	SubtitleSelected: "subtitle-selected",
	SubtitleRemoved:  "subtitle-removed",
	SelectionCleared: "selection-cleared",
	SearchCompleted:  "search-completed",
	ShowToast:        "show-toast",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ToastKind is the severity of a toast message.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastError
)

func (k ToastKind) String() string {
	switch k {
	case ToastSuccess:
		return "success"
	case ToastError:
		return "error"
	default:
		return "info"
	}
}

// Toast is a short user-facing message.
type Toast struct {
	Message string
	Kind    ToastKind
}

// Event is a notification. Which payload field is set depends on Kind:
// Subtitle for SubtitleSelected, FileID for SubtitleRemoved, Results for
// SearchCompleted and Toast for ShowToast.
type Event struct {
	Kind     Kind
	Subtitle models.SelectedSubtitle
	FileID   int64
	Results  int
	Toast    Toast
}

// Listener receives events it subscribed to.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent calls f(e).
func (f ListenerFunc) OnEvent(e Event) {
	f(e)
}

// Subscription identifies a listener registration.
type Subscription uint64

type registration struct {
	id       Subscription
	kind     Kind
	listener Listener
}

// Bus dispatches events synchronously, in subscription order. The zero value
// is ready to use.
type Bus struct {
	mu     sync.RWMutex
	nextID Subscription
	regs   []registration
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers l for events of kind.
func (b *Bus) Subscribe(kind Kind, l Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.regs = append(b.regs, registration{id: b.nextID, kind: kind, listener: l})
	return b.nextID
}

// Unsubscribe removes a registration. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.regs {
		if r.id == id {
			b.regs = append(b.regs[:i:i], b.regs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every listener subscribed to e.Kind. Listeners may
// subscribe or unsubscribe while being called; changes apply to the next
// Publish. A nil Bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	targets := make([]Listener, 0, len(b.regs))
	for _, r := range b.regs {
		if r.kind == e.Kind {
			targets = append(targets, r.listener)
		}
	}
	b.mu.RUnlock()

	for _, l := range targets {
		l.OnEvent(e)
	}
}

// Toast publishes a ShowToast event.
func (b *Bus) Toast(kind ToastKind, message string) {
	b.Publish(Event{Kind: ShowToast, Toast: Toast{Message: message, Kind: kind}})
}
