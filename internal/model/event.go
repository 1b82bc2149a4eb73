package model

import "time"

// EventType enumerates every ledger notification.
type EventType string

const (
	EventFunded                     EventType = "funded"
	EventWithdrawn                  EventType = "withdrawn"
	EventDicePlayed                 EventType = "dice_played"
	EventDiceResolved               EventType = "dice_resolved"
	EventLotteryCreated             EventType = "lottery_created"
	EventLotteryDrawRequested       EventType = "lottery_draw_requested"
	EventLotteryDrawn               EventType = "lottery_drawn"
	EventTicketsPurchased           EventType = "tickets_purchased"
	EventRefundClaimed              EventType = "refund_claimed"
	EventTokenConfigUpdated         EventType = "token_config_updated"
	EventHouseEdgeUpdated           EventType = "house_edge_updated"
	EventVRFConfigUpdated           EventType = "vrf_config_updated"
	EventCoordinatorSet             EventType = "coordinator_set"
	EventOwnershipTransferRequested EventType = "ownership_transfer_requested"
	EventOwnershipTransferred       EventType = "ownership_transferred"
)

// Event is an immutable record of one ledger state transition. Once
// journaled, events are never modified or deleted; the sequence is
// sufficient to reconstruct game history off-platform.
type Event struct {
	ID        string            `json:"id" db:"id"`
	Type      EventType         `json:"type" db:"type"`
	Actor     string            `json:"actor,omitempty" db:"actor"`
	Fields    map[string]string `json:"fields" db:"fields"`
	Timestamp time.Time         `json:"timestamp" db:"timestamp"`
}
