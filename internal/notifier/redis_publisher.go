// Package notifier forwards committed-bid events to external messaging systems
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	model "auction-bidding/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher mirrors events onto redis pub/sub so other service instances
// and downstream consumers see every accepted bid.
//
// channels: <prefix>auction:<auctionID>, <prefix>user:<userID>
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) PublishBidAccepted(ctx context.Context, event model.BidAcceptedEvent) error {
	return p.publish(ctx, p.prefix+"auction:"+event.AuctionID, envelope{Type: "bid_accepted", Data: event})
}

func (p *RedisPublisher) PublishOutbid(ctx context.Context, notice model.OutbidNotice) error {
	return p.publish(ctx, p.prefix+"user:"+notice.PreviousBidderID, envelope{Type: "outbid", Data: notice})
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, msg envelope) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notifier: marshal %s: %w", msg.Type, err)
	}
	if err := p.client.Publish(ctx, channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("notifier: publish %s to %s: %w", msg.Type, channel, err)
	}
	return nil
}
