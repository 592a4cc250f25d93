package notifier

import (
	"context"
	"fmt"

	model "auction-bidding/internal/models"

	pubnub "github.com/pubnub/go/v7"
)

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubPublisher hands outbid intents to PubNub, which owns delivery to the bidder's devices.
// Accepted bids go to the auction channel for clients not holding a websocket.
type PubNubPublisher struct {
	publish func(channel string, message any) error
}

func NewPubNubPublisher(cfg PubNubConfig) *PubNubPublisher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey

	pn := pubnub.NewPubNub(pnConfig)

	return &PubNubPublisher{
		publish: func(channel string, message any) error {
			_, _, err := pn.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		},
	}
}

func (p *PubNubPublisher) Name() string { return "pubnub" }

func (p *PubNubPublisher) PublishBidAccepted(ctx context.Context, event model.BidAcceptedEvent) error {
	channel := fmt.Sprintf("auction-%s", event.AuctionID)
	return p.send(ctx, channel, map[string]any{
		"type":       "bid_accepted",
		"auction_id": event.AuctionID,
		"bid_id":     event.BidID,
		"bidder_id":  event.BidderID,
		"amount":     event.Amount.String(),
		"timestamp":  event.Timestamp,
	})
}

func (p *PubNubPublisher) PublishOutbid(ctx context.Context, notice model.OutbidNotice) error {
	channel := fmt.Sprintf("user-%s", notice.PreviousBidderID)
	return p.send(ctx, channel, map[string]any{
		"type":          "outbid",
		"auction_id":    notice.AuctionID,
		"auction_title": notice.AuctionTitle,
		"new_amount":    notice.NewAmount.String(),
	})
}

func (p *PubNubPublisher) send(ctx context.Context, channel string, message map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notifier: pubnub %s: %w", message["type"], err)
	}
	if err := p.publish(channel, message); err != nil {
		return fmt.Errorf("notifier: pubnub publish %s to %s: %w", message["type"], channel, err)
	}
	return nil
}
