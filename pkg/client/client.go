package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"
	"game-soul-technology/joker/appliance-queue-server/pkg/msg"
	"game-soul-technology/joker/appliance-queue-server/pkg/notify"
	"game-soul-technology/joker/appliance-queue-server/pkg/queue"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Client is a middleman between the websocket connection and the queue
// participant of its session.
type Client struct {
	id string

	// The websocket connection.
	conn *websocket.Conn

	hub         *Hub
	participant *queue.Participant

	// Buffered channel of outbound messages. Never closed, writers
	// give up once done is closed.
	sendWsMessage chan *msg.WsMessage

	// Closed when the client should shut down.
	done      chan struct{}
	closeOnce sync.Once

	// Send pings to peer with this period.
	pingPeriod time.Duration

	// Time allowed to read the next pong message from the peer.
	pongWait time.Duration

	logger *zap.SugaredLogger
}

func NewClient(conn *websocket.Conn, hub *Hub, pingPeriod time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		id:            uuid.NewString(),
		conn:          conn,
		hub:           hub,
		sendWsMessage: make(chan *msg.WsMessage, 64),
		done:          make(chan struct{}),
		pingPeriod:    pingPeriod,
		pongWait:      pingPeriod * 5 / 2,
		logger:        logger,
	}
}

// Run attaches the client to a session, then pumps messages until the
// connection ends.
func (c *Client) Run(sessionId string) {
	participant, err := c.hub.attach(context.Background(), c, sessionId)
	if err != nil {
		c.logger.Errorf("client[%v] cannot open session %v", c.id, err)
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Store unavailable")); err != nil {
			c.logger.Errorf("cannot write close message to ws conn %v", err)
		}
		c.conn.Close()
		return
	}
	c.participant = participant

	go c.writePump()

	c.send(msg.SessionCode, &msg.SessionServerEvent{SessionId: participant.Session.Id})
	c.send(msg.ViewCode, &msg.ViewServerEvent{View: participant.Projector.Snapshot()})
	go c.viewPump()

	c.readPump()
}

// TryClose asks the client to shut down. Safe to call many times.
func (c *Client) TryClose() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.logger.Debugf("client[%v] leaving readPump", c.id)
		c.hub.detach(c, c.participant.Session.Id)
		c.TryClose()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	// Heartbeat. Close connection if client does not respond to ping for too long.
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		wsMessage := &msg.WsMessage{}
		if err := c.conn.ReadJSON(wsMessage); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnf("client[%v] read failed %v", c.id, err)
			} else {
				c.logger.Debugf("client[%v] read closing %v", c.id, err)
			}
			return
		}

		// Intents run on their own so views keep flowing meanwhile.
		go c.handleIntent(wsMessage)
	}
}

func (c *Client) writePump() {
	pingTicker := time.NewTicker(c.pingPeriod)

	defer func() {
		c.logger.Debugf("client[%v] leaving writePump", c.id)
		pingTicker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case wsMessage := <-c.sendWsMessage:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(wsMessage); err != nil {
				c.logger.Errorf("client[%v] cannot write json to ws conn %v", c.id, err)
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("client[%v] ping failed %v", c.id, err)
				return
			}
		}
	}
}

// viewPump forwards every new view of the session.
func (c *Client) viewPump() {
	views := c.participant.Projector.Views()
	for {
		select {
		case <-c.done:
			return
		case view := <-views:
			c.send(msg.ViewCode, &msg.ViewServerEvent{View: view})
		}
	}
}

func (c *Client) handleIntent(wsMessage *msg.WsMessage) {
	ctx := context.Background()

	var (
		op     notify.Op
		number int64
		err    error
	)
	switch wsMessage.EventCode {
	case msg.JoinCode:
		op = notify.OpJoin
		event := &msg.JoinClientEvent{}
		if err = json.Unmarshal(wsMessage.EventData, event); err != nil {
			c.logger.Warnf("client[%v] invalid JoinClientEvent %v", c.id, err)
			err = queue.ErrInvalidName
			break
		}

		var ticket *model.Ticket
		if ticket, err = c.participant.Join(ctx, event.Name); err == nil {
			number = ticket.Number
		}

	case msg.ConfirmCode:
		op = notify.OpConfirm
		number, err = c.participant.Confirm(ctx)

	case msg.CancelCode:
		op = notify.OpCancel
		number, err = c.participant.Cancel(ctx)

	default:
		c.logger.Errorf("client[%v] invalid eventCode[%v]", c.id, wsMessage.EventCode)
		return
	}

	outcome := notify.NewOutcome(c.participant.Session.Id, op, number, err)
	c.logger.Infof("client[%v] outcome[%+v]", c.id, outcome)

	c.send(msg.OutcomeCode, &msg.OutcomeServerEvent{
		Op:          string(outcome.Op),
		Ok:          outcome.Ok,
		Code:        outcome.Code,
		Number:      outcome.Number,
		Title:       outcome.Title,
		Description: outcome.Description,
	})
	c.hub.notifier.Notify(ctx, outcome)
}

// send queues an event for the peer, giving up once the client is done.
func (c *Client) send(code msg.EventCode, event interface{}) {
	wsMessage, err := msg.NewWsMessage(code, event)
	if err != nil {
		c.logger.Errorf("client[%v] cannot marshal eventCode[%v] %v", c.id, code, err)
		return
	}

	select {
	case c.sendWsMessage <- wsMessage:
	case <-c.done:
	}
}

// trySend drops the message when the peer is too slow to keep up.
func (c *Client) trySend(wsMessage *msg.WsMessage) {
	select {
	case c.sendWsMessage <- wsMessage:
	default:
		c.logger.Warnf("client[%v] send buffer full, dropping eventCode[%v]", c.id, wsMessage.EventCode)
	}
}
