package requests

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Variant selects how a notification is presented.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a short user-facing message. Details belong in the debug log.
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier delivers notifications to the viewer.
type Notifier interface {
	Notify(n Notification)
}

// PrintNotifier writes notifications to a terminal.
type PrintNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrintNotifier(out io.Writer) *PrintNotifier {
	return &PrintNotifier{out: out}
}

func (p *PrintNotifier) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	marker := "✓"
	if n.Variant == VariantDestructive {
		marker = "✗"
	}

	if n.Description == "" {
		fmt.Fprintf(p.out, "%s %s\n", marker, n.Title)
	} else {
		fmt.Fprintf(p.out, "%s %s: %s\n", marker, n.Title, n.Description)
	}

	log.Debug().Str("title", n.Title).Str("variant", string(n.Variant)).Msg("notification")
}

// RecordingNotifier keeps every notification in order.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *RecordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of the notifications received so far.
func (r *RecordingNotifier) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Last returns the most recent notification and whether there was one.
func (r *RecordingNotifier) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}
