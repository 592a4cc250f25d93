// Package events delivers committed-bid events to downstream publishers.
//
// Emission never blocks the bid path: events are queued and handed to publishers by
// background workers. Events for one auction always go through the same worker, so
// publishers observe them in commit order.
package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	model "auction-bidding/internal/models"
	"auction-bidding/utils"
)

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrClosed    = errors.New("event dispatcher is closed")
)

const (
	EventBidAccepted = "bid_accepted"
	EventOutbid      = "outbid"
)

// Publisher pushes events to one downstream channel (websocket viewers, redis, pubnub)
type Publisher interface {
	Name() string
	PublishBidAccepted(ctx context.Context, event model.BidAcceptedEvent) error
	PublishOutbid(ctx context.Context, notice model.OutbidNotice) error
}

// Emitter is what the bidding engine sees of the dispatcher
type Emitter interface {
	EmitBidAccepted(event model.BidAcceptedEvent) error
	EmitOutbid(notice model.OutbidNotice) error
}

// DeliveryTracker receives delivery metrics; *monitoring.Monitor satisfies it
type DeliveryTracker interface {
	TrackDelivery(publisher, event, status string)
	SetQueueDepth(n int)
}

type Options struct {
	QueueSize      int
	Workers        int
	MaxAttempts    int
	RetryBackoff   time.Duration
	PublishTimeout time.Duration
	Breaker        utils.BreakerSettings
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize < o.Workers {
		o.QueueSize = 1024
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	return o
}

type envelope struct {
	kind     string
	accepted model.BidAcceptedEvent
	outbid   model.OutbidNotice
}

func (e envelope) auctionID() string {
	if e.kind == EventOutbid {
		return e.outbid.AuctionID
	}
	return e.accepted.AuctionID
}

type target struct {
	publisher Publisher
	breaker   *utils.CircuitBreaker
}

// Dispatcher fans committed events out to every registered publisher with bounded retries
type Dispatcher struct {
	opts    Options
	targets []target
	tracker DeliveryTracker
	shards  []chan envelope

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers. tracker may be nil.
func NewDispatcher(opts Options, tracker DeliveryTracker, publishers ...Publisher) *Dispatcher {
	opts = opts.withDefaults()

	d := &Dispatcher{
		opts:    opts,
		tracker: tracker,
		shards:  make([]chan envelope, opts.Workers),
	}
	for _, p := range publishers {
		d.targets = append(d.targets, target{
			publisher: p,
			breaker:   utils.NewCircuitBreaker("publisher-"+p.Name(), opts.Breaker),
		})
	}

	perShard := opts.QueueSize / opts.Workers
	for i := range d.shards {
		d.shards[i] = make(chan envelope, perShard)
		d.wg.Add(1)
		go d.worker(d.shards[i])
	}

	utils.Info("event dispatcher started", map[string]any{
		"workers":    opts.Workers,
		"queue_size": opts.QueueSize,
		"publishers": len(d.targets),
	})
	return d
}

// EmitBidAccepted queues a BidAccepted event without blocking
func (d *Dispatcher) EmitBidAccepted(event model.BidAcceptedEvent) error {
	return d.enqueue(envelope{kind: EventBidAccepted, accepted: event})
}

// EmitOutbid queues an outbid intent without blocking
func (d *Dispatcher) EmitOutbid(notice model.OutbidNotice) error {
	return d.enqueue(envelope{kind: EventOutbid, outbid: notice})
}

func (d *Dispatcher) enqueue(env envelope) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return fmt.Errorf("events: emit %s for auction %s: %w", env.kind, env.auctionID(), ErrClosed)
	}

	select {
	case d.shards[d.shardFor(env.auctionID())] <- env:
		d.reportDepth()
		return nil
	default:
		if d.tracker != nil {
			d.tracker.TrackDelivery("dispatcher", env.kind, "dropped")
		}
		return fmt.Errorf("events: emit %s for auction %s: %w", env.kind, env.auctionID(), ErrQueueFull)
	}
}

func (d *Dispatcher) shardFor(auctionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(auctionID))
	return int(h.Sum32() % uint32(len(d.shards)))
}

func (d *Dispatcher) reportDepth() {
	if d.tracker == nil {
		return
	}
	n := 0
	for _, s := range d.shards {
		n += len(s)
	}
	d.tracker.SetQueueDepth(n)
}

func (d *Dispatcher) worker(queue <-chan envelope) {
	defer d.wg.Done()
	for env := range queue {
		for _, t := range d.targets {
			d.deliver(t, env)
		}
		d.reportDepth()
	}
}

// deliver retries one publisher with linear backoff. An open breaker skips the publisher.
func (d *Dispatcher) deliver(t target, env envelope) {
	name := t.publisher.Name()

	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		err = t.breaker.Execute(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), d.opts.PublishTimeout)
			defer cancel()

			if env.kind == EventOutbid {
				return t.publisher.PublishOutbid(ctx, env.outbid)
			}
			return t.publisher.PublishBidAccepted(ctx, env.accepted)
		})
		if err == nil {
			d.track(name, env.kind, "delivered")
			return
		}
		if errors.Is(err, utils.ErrCircuitOpen) || errors.Is(err, utils.ErrTooManyRequests) {
			d.track(name, env.kind, "rejected")
			utils.Warn("publisher circuit open, event skipped", map[string]any{
				"publisher":  name,
				"event":      env.kind,
				"auction_id": env.auctionID(),
			})
			return
		}
		if attempt < d.opts.MaxAttempts {
			time.Sleep(time.Duration(attempt) * d.opts.RetryBackoff)
		}
	}

	d.track(name, env.kind, "failed")
	utils.Error("event delivery failed", map[string]any{
		"publisher":  name,
		"event":      env.kind,
		"auction_id": env.auctionID(),
		"attempts":   d.opts.MaxAttempts,
		"error":      err.Error(),
	})
}

func (d *Dispatcher) track(publisher, event, status string) {
	if d.tracker != nil {
		d.tracker.TrackDelivery(publisher, event, status)
	}
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to expire
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, s := range d.shards {
		close(s)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		utils.Info("event dispatcher drained", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: drain dispatcher: %w", ctx.Err())
	}
}

var _ Emitter = (*Dispatcher)(nil)
