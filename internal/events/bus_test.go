package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus(testLog())

	var received []*Event
	bus.Subscribe(DepositProcessed, func(e *Event) {
		received = append(received, e)
	})

	bus.Emit(DepositProcessed, "vault", map[string]interface{}{"holder": "alice"})

	assert.Len(t, received, 1)
	assert.Equal(t, DepositProcessed, received[0].Type)
	assert.Equal(t, "vault", received[0].Module)
	assert.Equal(t, "alice", received[0].Data["holder"])
}

func TestBus_EmitOnlyReachesMatchingType(t *testing.T) {
	bus := NewBus(testLog())

	var count int
	bus.Subscribe(DepositProcessed, func(e *Event) { count++ })

	bus.Emit(WithdrawalProcessed, "vault", nil)
	assert.Equal(t, 0, count)

	bus.Emit(DepositProcessed, "vault", nil)
	assert.Equal(t, 1, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(testLog())

	var count int
	cancel := bus.Subscribe(DepositProcessed, func(e *Event) { count++ })

	bus.Emit(DepositProcessed, "vault", nil)
	cancel()
	bus.Emit(DepositProcessed, "vault", nil)

	assert.Equal(t, 1, count)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(testLog())

	var received []EventType
	cancel := bus.SubscribeAll(func(e *Event) {
		received = append(received, e.Type)
	})

	bus.Emit(DepositProcessed, "vault", nil)
	bus.Emit(BackupCreated, "reliability", nil)
	assert.Len(t, received, 2)

	cancel()
	bus.Emit(PolicyChanged, "vault", nil)
	assert.Len(t, received, 2)
}

func TestManager_EmitTypedConvertsPayload(t *testing.T) {
	bus := NewBus(testLog())
	manager := NewManager(bus, testLog())

	var received *Event
	bus.Subscribe(DepositProcessed, func(e *Event) { received = e })

	manager.EmitTyped(DepositProcessed, "vault", &DepositProcessedData{
		Holder: "alice",
		Amount: 1000,
		Placed: [3]int64{400, 400, 200},
	})

	assert.NotNil(t, received)
	assert.Equal(t, "alice", received.Data["holder"])
	assert.Equal(t, float64(1000), received.Data["amount"])
}
