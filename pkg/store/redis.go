package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"game-soul-technology/joker/appliance-queue-server/pkg/model"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	servingKey = "serving"
	ticketsKey = "tickets"
	eventsKey  = "events"

	ticketsEvent = "tickets"
	servingEvent = "serving"

	// Re-read both records with this interval in case a pub/sub message
	// was lost while the subscription reconnected.
	resyncInterval = 30 * time.Second
)

// Moves KEYS[1] (serving) forward from ARGV[1] when it still equals it
// and ticket ARGV[1] is gone.
// Expects KEYS[2] to be the tickets hash and KEYS[3] the events channel.
const advanceLua = `
local function advance(from)
	local cur = tonumber(redis.call('GET', KEYS[1]) or '1')
	if cur ~= from then
		return cur
	end
	if redis.call('HEXISTS', KEYS[2], tostring(from)) == 1 then
		return cur
	end
	local nxt = from + 1
	if redis.call('HEXISTS', KEYS[2], tostring(nxt)) == 0 then
		local best = nil
		for _, field in ipairs(redis.call('HKEYS', KEYS[2])) do
			local n = tonumber(field)
			if n > from and (best == nil or n < best) then
				best = n
			end
		end
		if best ~= nil then
			nxt = best
		end
	end
	redis.call('SET', KEYS[1], tostring(nxt))
	redis.call('PUBLISH', KEYS[3], 'serving')
	return nxt
end
`

var (
	initServingScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], '1') == 1 then
	redis.call('PUBLISH', KEYS[2], 'serving')
end
return tonumber(redis.call('GET', KEYS[1]))
`)

	advanceScript = redis.NewScript(advanceLua + `
return advance(tonumber(ARGV[1]))
`)

	// Returns 1 on insert, 0 if the number is taken, -1 if it is
	// behind the serving counter.
	insertScript = redis.NewScript(`
local serving = tonumber(redis.call('GET', KEYS[1]) or '1')
if tonumber(ARGV[1]) < serving then
	return -1
end
if redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('PUBLISH', KEYS[3], 'tickets')
return 1
`)

	deleteScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 1 then
	redis.call('PUBLISH', KEYS[2], 'tickets')
end
return 0
`)

	resolveScript = redis.NewScript(advanceLua + `
if redis.call('HDEL', KEYS[2], ARGV[1]) == 1 then
	redis.call('PUBLISH', KEYS[3], 'tickets')
end
return advance(tonumber(ARGV[1]))
`)
)

// RedisStore keeps the queue in Redis so every server instance shares
// it. Tickets live in one hash (field = number, value = json ticket),
// the counter in a plain key. Scripts publish on the events channel
// after each mutation; one listener per process re-reads the changed
// record and fans it out.
type RedisStore struct {
	client *redis.Client

	servingKey string
	ticketsKey string
	eventsKey  string

	broker *broker
	cancel context.CancelFunc
	done   chan struct{}

	logger *zap.SugaredLogger
}

// NewRedisStore subscribes to the events channel before returning so no
// mutation after this call goes unnoticed. Close releases the
// subscription.
func NewRedisStore(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) (*RedisStore, error) {
	s := &RedisStore{
		client:     client,
		servingKey: prefix + servingKey,
		ticketsKey: prefix + ticketsKey,
		eventsKey:  prefix + eventsKey,
		broker:     newBroker(),
		done:       make(chan struct{}),
		logger:     logger,
	}

	pubsub := client.Subscribe(ctx, s.eventsKey)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, unavailable(err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listen(listenCtx, pubsub)

	return s, nil
}

func (s *RedisStore) Close() {
	s.cancel()
	<-s.done
}

func (s *RedisStore) InitServing(ctx context.Context) (int64, error) {
	serving, err := initServingScript.Run(ctx, s.client, []string{s.servingKey, s.eventsKey}).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return serving, nil
}

func (s *RedisStore) Serving(ctx context.Context) (int64, error) {
	serving, err := s.client.Get(ctx, s.servingKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return serving, nil
}

func (s *RedisStore) AdvanceServing(ctx context.Context, from int64) (int64, error) {
	serving, err := advanceScript.Run(ctx, s.client, s.scriptKeys(), from).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return serving, nil
}

func (s *RedisStore) Resolve(ctx context.Context, number int64) (int64, error) {
	serving, err := resolveScript.Run(ctx, s.client, s.scriptKeys(), number).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return serving, nil
}

func (s *RedisStore) InsertTicket(ctx context.Context, ticket *model.Ticket) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("cannot marshal ticket[%+v]: %w", ticket, err)
	}

	result, err := insertScript.Run(ctx, s.client, s.scriptKeys(), ticket.Number, string(raw)).Int64()
	if err != nil {
		return unavailable(err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return ErrAlreadyExists
	default:
		return ErrBehindServing
	}
}

func (s *RedisStore) GetTicket(ctx context.Context, number int64) (*model.Ticket, error) {
	raw, err := s.client.HGet(ctx, s.ticketsKey, strconv.FormatInt(number, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	ticket := &model.Ticket{}
	if err := json.Unmarshal([]byte(raw), ticket); err != nil {
		return nil, fmt.Errorf("cannot unmarshal ticket number[%v]: %w", number, err)
	}
	return ticket, nil
}

func (s *RedisStore) Tickets(ctx context.Context) ([]*model.Ticket, error) {
	values, err := s.client.HGetAll(ctx, s.ticketsKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	tickets := make([]*model.Ticket, 0, len(values))
	for field, raw := range values {
		ticket := &model.Ticket{}
		if err := json.Unmarshal([]byte(raw), ticket); err != nil {
			s.logger.Errorf("skip malformed ticket field[%v] %v", field, err)
			continue
		}
		tickets = append(tickets, ticket)
	}

	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].Number < tickets[j].Number
	})
	return tickets, nil
}

func (s *RedisStore) DeleteTicket(ctx context.Context, number int64) error {
	if err := deleteScript.Run(ctx, s.client, []string{s.ticketsKey, s.eventsKey}, number).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) SubscribeTickets(ctx context.Context) (<-chan []*model.Ticket, error) {
	return s.broker.subscribeTickets(ctx), nil
}

func (s *RedisStore) SubscribeServing(ctx context.Context) (<-chan int64, error) {
	return s.broker.subscribeServing(ctx), nil
}

func (s *RedisStore) scriptKeys() []string {
	return []string{s.servingKey, s.ticketsKey, s.eventsKey}
}

func (s *RedisStore) listen(ctx context.Context, pubsub *redis.PubSub) {
	defer close(s.done)
	defer pubsub.Close()

	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()

	s.refreshTickets(ctx)
	s.refreshServing(ctx)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case message, ok := <-messages:
			if !ok {
				s.logger.Warnf("events channel[%v] closed", s.eventsKey)
				return
			}

			switch message.Payload {
			case ticketsEvent:
				s.refreshTickets(ctx)
			case servingEvent:
				s.refreshServing(ctx)
			default:
				s.logger.Warnf("unknown event[%v] on channel[%v]", message.Payload, s.eventsKey)
			}

		case <-ticker.C:
			s.refreshTickets(ctx)
			s.refreshServing(ctx)
		}
	}
}

// On failure subscribers keep their last snapshot until the next event
// or resync.
func (s *RedisStore) refreshTickets(ctx context.Context) {
	tickets, err := s.Tickets(ctx)
	if err != nil {
		s.logger.Warnf("cannot refresh tickets %v", err)
		return
	}
	s.broker.publishTickets(tickets)
}

func (s *RedisStore) refreshServing(ctx context.Context) {
	serving, err := s.Serving(ctx)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warnf("cannot refresh serving %v", err)
		return
	}
	s.broker.publishServing(serving)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
