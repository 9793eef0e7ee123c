package output

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
)

// DefaultReceiverBuffer is the per-receiver channel size.
const DefaultReceiverBuffer = 16

// Receiver is one alert consumer registered for a tab.
type Receiver struct {
	ID     string
	TabID  domain.TabID
	Alerts <-chan domain.Alert

	ch chan domain.Alert
}

// TabNotifier routes alerts to receivers registered per tab.
//
// Routing:
//   - Receivers registered for the alert's tab get it
//   - Otherwise the receivers of the active tab get it
//   - NoReceiver when neither exists
//   - DeliveryFailed when every candidate buffer is full
//
// Deliver never blocks.
type TabNotifier struct {
	mu        sync.RWMutex
	receivers map[domain.TabID]map[string]*Receiver
	activeTab domain.TabID
	buffer    int
}

func NewTabNotifier(buffer int) *TabNotifier {
	if buffer <= 0 {
		buffer = DefaultReceiverBuffer
	}
	return &TabNotifier{
		receivers: make(map[domain.TabID]map[string]*Receiver),
		buffer:    buffer,
	}
}

// Register adds a receiver for tab. Call Unregister when done.
func (n *TabNotifier) Register(tab domain.TabID) *Receiver {
	ch := make(chan domain.Alert, n.buffer)
	r := &Receiver{ID: uuid.NewString(), TabID: tab, Alerts: ch, ch: ch}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.receivers[tab] == nil {
		n.receivers[tab] = make(map[string]*Receiver)
	}
	n.receivers[tab][r.ID] = r

	log.Debug().Str("receiver", r.ID).Str("tab", tab.Key()).Msg("Alert receiver registered")
	return r
}

// Unregister removes the receiver and closes its channel. Idempotent.
func (n *TabNotifier) Unregister(r *Receiver) {
	if r == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	byID, ok := n.receivers[r.TabID]
	if !ok {
		return
	}
	if _, ok := byID[r.ID]; !ok {
		return
	}
	delete(byID, r.ID)
	close(r.ch)
	if len(byID) == 0 {
		delete(n.receivers, r.TabID)
	}
}

// SetActiveTab selects the fallback tab for alerts whose tab has no
// receiver.
func (n *TabNotifier) SetActiveTab(tab domain.TabID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activeTab = tab
}

func (n *TabNotifier) Deliver(_ context.Context, alert domain.Alert) domain.DeliveryOutcome {
	n.mu.RLock()
	defer n.mu.RUnlock()

	targets := n.receivers[alert.TabID]
	if len(targets) == 0 && n.activeTab != alert.TabID {
		targets = n.receivers[n.activeTab]
	}
	if len(targets) == 0 {
		return domain.NoReceiver
	}

	outcome := domain.DeliveryFailed
	for _, r := range targets {
		select {
		case r.ch <- alert:
			outcome = domain.Delivered
		default:
		}
	}
	return outcome
}

// Receivers returns the number of registered receivers.
func (n *TabNotifier) Receivers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	total := 0
	for _, byID := range n.receivers {
		total += len(byID)
	}
	return total
}

// LogNotifier writes every alert as a log line. Used in --no-tui mode.
type LogNotifier struct{}

func (LogNotifier) Deliver(_ context.Context, alert domain.Alert) domain.DeliveryOutcome {
	log.Warn().
		Str("title", alert.Title).
		Str("severity", alert.Severity.String()).
		Str("category", alert.Category.String()).
		Str("tab", alert.TabID.Key()).
		Str("url", alert.URL).
		Msg(alert.Message)
	return domain.Delivered
}

// MultiNotifier fans an alert out to several notifiers. The best outcome
// wins: Delivered over NoReceiver over DeliveryFailed.
type MultiNotifier []ports.Notifier

func (m MultiNotifier) Deliver(ctx context.Context, alert domain.Alert) domain.DeliveryOutcome {
	if len(m) == 0 {
		return domain.NoReceiver
	}
	best := domain.DeliveryFailed
	for _, n := range m {
		if outcome := n.Deliver(ctx, alert); outcome < best {
			best = outcome
		}
	}
	return best
}
