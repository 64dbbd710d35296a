package queue

import (
	"errors"
	"fmt"
	"testing"

	"game-soul-technology/joker/appliance-queue-server/pkg/store"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", ErrNotYourTurn)
	assert.ErrorIs(t, wrapped, ErrNotYourTurn)
	assert.False(t, errors.Is(wrapped, ErrNoActiveTicket))
	assert.Equal(t, CodeNotYourTurn, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, storeError(nil))

	err := storeError(fmt.Errorf("%w: timeout", store.ErrUnavailable))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, CodeStoreUnavailable, CodeOf(err))

	// Unknown failures are still reported as the store being unavailable.
	err = storeError(errors.New("boom"))
	assert.ErrorIs(t, err, store.ErrUnavailable)

	// Already converted errors pass through.
	assert.Equal(t, ErrAllocationFailed, storeError(ErrAllocationFailed))
}
