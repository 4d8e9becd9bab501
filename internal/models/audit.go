package models

import "time"

// Action is the kind of stock movement recorded in the audit log.
type Action string

const (
	ActionAddition   Action = "Addition"
	ActionWithdrawal Action = "Withdrawal"
)

// Rank orders actions inside a report group: additions first.
func (a Action) Rank() int {
	switch a {
	case ActionAddition:
		return 0
	case ActionWithdrawal:
		return 1
	default:
		return 2
	}
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return a == ActionAddition || a == ActionWithdrawal
}

// TimestampLayout is how log timestamps are written to flat files and exports.
const TimestampLayout = "2006-01-02 15:04:05"

// LogEntry represents one audit log row.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"actor_role"`
	Action    Action    `json:"action_kind"`
	ItemName  string    `json:"item_name"`
	Amount    int       `json:"amount"`
}
