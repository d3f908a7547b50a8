package eventhandler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
	"github.com/earth-innovators/merit-engine/internal/infrastructure/messaging"
	"github.com/earth-innovators/merit-engine/pkg/logger"
)

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context) error {
	f.calls++
	return f.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

func TestPointsRecordedHandler_InvalidatesStandings(t *testing.T) {
	inv := &fakeInvalidator{}
	h := NewPointsRecordedHandler(inv, quietLogger())

	event := shared.NewPointsRecordedEvent(
		"3f2b8a1c-9d4e-4f6a-8b2c-1d3e5f7a9b0c", "tx-1", "earned", 50, 150, "test")
	require.NoError(t, h.Handle(event))

	assert.Equal(t, 1, inv.calls)
}

func TestPointsRecordedHandler_InvalidationFailureIsSwallowed(t *testing.T) {
	inv := &fakeInvalidator{err: errors.New("redis down")}
	h := NewPointsRecordedHandler(inv, quietLogger())

	event := shared.NewPointsRecordedEvent(
		"3f2b8a1c-9d4e-4f6a-8b2c-1d3e5f7a9b0c", "tx-1", "earned", 50, 150, "test")
	assert.NoError(t, h.Handle(event), "stale standings expire at TTL; the ledger write already succeeded")
}

func TestPointsRecordedHandler_NilInvalidator(t *testing.T) {
	h := NewPointsRecordedHandler(nil, quietLogger())

	event := shared.NewPointsRecordedEvent(
		"3f2b8a1c-9d4e-4f6a-8b2c-1d3e5f7a9b0c", "tx-1", "earned", 50, 150, "test")
	assert.NoError(t, h.Handle(event))
}

func TestRegister_WiresPointsEventsThroughBus(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	inv := &fakeInvalidator{}
	require.NoError(t, Register(bus, inv, quietLogger()))

	require.NoError(t, bus.Publish(shared.NewPointsRecordedEvent(
		"3f2b8a1c-9d4e-4f6a-8b2c-1d3e5f7a9b0c", "tx-1", "bonus", 25, 175, "test")))
	assert.Equal(t, 1, inv.calls)

	// Certificate and number events do not touch the standings.
	require.NoError(t, bus.Publish(shared.NewNumberAssignedEvent(
		"3f2b8a1c-9d4e-4f6a-8b2c-1d3e5f7a9b0c", "STU-0A1B2C3D", "student")))
	assert.Equal(t, 1, inv.calls)
}

func TestAsInt64_HandlesJSONDecodedNumbers(t *testing.T) {
	assert.Equal(t, int64(42), asInt64(int64(42)))
	assert.Equal(t, int64(42), asInt64(float64(42)))
	assert.Zero(t, asInt64("not a number"))
}
