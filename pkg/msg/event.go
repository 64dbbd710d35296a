package msg

import "game-soul-technology/joker/appliance-queue-server/pkg/queue"

type EventCode uint

const (
	// Client -> server.
	JoinCode    EventCode = 1000
	ConfirmCode EventCode = 1001
	CancelCode  EventCode = 1002

	// Server -> client.
	SessionCode    EventCode = 2000
	ViewCode       EventCode = 2001
	OutcomeCode    EventCode = 2002
	QueueStatsCode EventCode = 2003
)

type JoinClientEvent struct {
	Name string `json:"name"`
}

// Sent once after connecting. Reconnect with this id to keep the ticket.
type SessionServerEvent struct {
	SessionId string `json:"sessionId"`
}

type ViewServerEvent struct {
	queue.View
}

type OutcomeServerEvent struct {
	Op          string     `json:"op"`
	Ok          bool       `json:"ok"`
	Code        queue.Code `json:"code,omitempty"`
	Number      int64      `json:"number,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

type QueueStatsServerEvent struct {
	AvgWaitMsec    int64  `json:"avgWaitMsec"`
	AvgServiceMsec int64  `json:"avgServiceMsec"`
	ServedCount    uint64 `json:"servedCount"`
}
