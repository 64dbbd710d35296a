package msg

import "encoding/json"

type WsMessage struct {
	EventCode EventCode       `json:"eventCode"`
	EventData json.RawMessage `json:"eventData,omitempty"`
}

// NewWsMessage marshals event into the envelope. A nil event leaves
// EventData empty.
func NewWsMessage(code EventCode, event interface{}) (*WsMessage, error) {
	wsMessage := &WsMessage{EventCode: code}
	if event == nil {
		return wsMessage, nil
	}

	rawEvent, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	wsMessage.EventData = rawEvent
	return wsMessage, nil
}
