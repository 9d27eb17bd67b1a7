// Package realtime announces successful check-ins to door displays and
// other gates of the same event over PubNub.
package realtime

import (
	"context"
	"fmt"
	"time"

	pubnub "github.com/pubnub/go/v7"
)

// CheckIn is one successful redemption.
type CheckIn struct {
	TicketID       string
	EventID        uint64
	TicketTypeName string
	StaffID        uint64
	UsedAt         time.Time
}

// Channel returns the PubNub channel of an event's door feed.
func Channel(eventID uint64) string { return fmt.Sprintf("checkin.%d", eventID) }

func payload(c CheckIn) map[string]any {
	return map[string]any{
		"type":        "ticket_checked_in",
		"ticket_id":   c.TicketID,
		"event_id":    c.EventID,
		"ticket_type": c.TicketTypeName,
		"staff_id":    c.StaffID,
		"used_at":     c.UsedAt.UTC().Format(time.RFC3339),
	}
}

// PubNubFeed publishes check-ins with a publish-only PubNub client.
type PubNubFeed struct {
	pn *pubnub.PubNub
}

// NewPubNubFeed builds a feed from publish and subscribe keys.  userID
// identifies this server instance to PubNub.
func NewPubNubFeed(publishKey, subscribeKey, userID string) *PubNubFeed {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	return &PubNubFeed{pn: pubnub.NewPubNub(cfg)}
}

// AnnounceCheckIn publishes c on the event's channel.
func (f *PubNubFeed) AnnounceCheckIn(_ context.Context, c CheckIn) error {
	_, status, err := f.pn.Publish().
		Channel(Channel(c.EventID)).
		Message(payload(c)).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish (status %d): %w", status.StatusCode, err)
	}
	return nil
}

// Noop discards announcements.  It is used when no PubNub keys are set.
type Noop struct{}

func (Noop) AnnounceCheckIn(context.Context, CheckIn) error { return nil }
