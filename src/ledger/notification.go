package ledger

// Notification reasons.
const (
	// ReasonNewBlock signals that a chain advanced to a new height.
	ReasonNewBlock = "new-block"
	// ReasonNewMessage signals an incoming cross-chain message.
	ReasonNewMessage = "new-message"
	// ReasonNewRound signals a change in the chain's consensus round.
	ReasonNewRound = "new-round"
)

// Notification is an event emitted while processing chain operations, meant
// to be forwarded to subscribers. Notifications are collected even when the
// operation that produced them ultimately fails.
type Notification struct {
	ChainID ChainID
	Height  BlockHeight
	Reason  string
}
