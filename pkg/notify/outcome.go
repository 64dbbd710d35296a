package notify

import (
	"fmt"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/queue"
)

type Op string

const (
	OpJoin    Op = "join"
	OpConfirm Op = "confirm"
	OpCancel  Op = "cancel"
)

// Outcome is the terminal result of one client intent.
type Outcome struct {
	SessionId   string     `json:"sessionId"`
	Op          Op         `json:"op"`
	Ok          bool       `json:"ok"`
	Code        queue.Code `json:"code,omitempty"`
	Number      int64      `json:"number,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Time        time.Time  `json:"time"`
}

// NewOutcome describes the result of op. err is nil on success.
func NewOutcome(sessionId string, op Op, number int64, err error) *Outcome {
	outcome := &Outcome{
		SessionId: sessionId,
		Op:        op,
		Ok:        err == nil,
		Code:      queue.CodeOf(err),
		Number:    number,
		Time:      time.Now(),
	}
	outcome.Title, outcome.Description = describe(op, number, outcome.Code)
	return outcome
}

func describe(op Op, number int64, code queue.Code) (string, string) {
	switch code {
	case "":
	case queue.CodeInvalidName:
		return "Invalid name", "Please enter a name."
	case queue.CodeAlreadyQueued:
		return "Already queued", "You already hold a ticket."
	case queue.CodeNotYourTurn:
		return "Not your turn", "Please wait until your number is called."
	case queue.CodeNoActiveTicket:
		return "No ticket", "You are not in the queue."
	case queue.CodeServiceClosed:
		return "Closed", "The appliance is not taking new tickets right now."
	case queue.CodeBusy:
		return "Please wait", "Your previous request is still being processed."
	case queue.CodeAllocationFailed:
		return "Queue is busy", "Could not get a ticket number, please try again."
	default:
		return "Something went wrong", "Please try again in a moment."
	}

	switch op {
	case OpJoin:
		return "Joined", fmt.Sprintf("Your number is %v.", number)
	case OpConfirm:
		return "Done", fmt.Sprintf("Ticket %v is finished.", number)
	default:
		return "Cancelled", fmt.Sprintf("Ticket %v is cancelled.", number)
	}
}
