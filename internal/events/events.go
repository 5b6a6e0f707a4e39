// Package events carries in-process trade events to feed observers. The
// HTTP stream endpoint that pushes them to clients subscribes here; the
// core only guarantees that an event is produced.
package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type ProfitUpdate struct {
	TradeID    uint            `json:"trade_id"`
	UserID     uint            `json:"user_id"`
	MarketName string          `json:"market"`
	Symbol     string          `json:"symbol"`
	Profit     decimal.Decimal `json:"profit"`
	Closed     bool            `json:"closed"`
	At         time.Time       `json:"at"`
}

type Publisher interface {
	PublishProfitUpdate(ev ProfitUpdate)
}

type Subscription struct {
	C  chan ProfitUpdate
	id int
	b  *Broker
}

func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

// Broker fans profit updates out to subscribers. Slow subscribers drop
// events rather than block the trading path.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan ProfitUpdate
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan ProfitUpdate)}
}

func (b *Broker) Subscribe(buffer int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	ch := make(chan ProfitUpdate, buffer)
	b.subs[b.nextID] = ch
	return &Subscription{C: ch, id: b.nextID, b: b}
}

func (b *Broker) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broker) PublishProfitUpdate(ev ProfitUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
