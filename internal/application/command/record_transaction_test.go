package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

const recordTestUser = "a1b2c3d4-0000-4000-8000-000000000010"

func TestRecordTransaction_CreditAndDebit(t *testing.T) {
	repo := newFakeLedgerRepo()
	bus := &fakeBus{}
	h := NewRecordTransactionHandler(repo, bus, true)

	res, err := h.Handle(context.Background(), RecordTransactionCommand{
		UserID: recordTestUser,
		Type:   "earned",
		Points: 120,
		Source: "challenge-service",
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Points(120), res.NewBalance)
	assert.NotEmpty(t, res.TransactionID)

	res, err = h.Handle(context.Background(), RecordTransactionCommand{
		UserID: recordTestUser,
		Type:   "redeemed",
		Points: -50,
		Source: "rewards-shop",
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Points(70), res.NewBalance)

	assert.Len(t, bus.byType(shared.EventPointsRecorded), 2)
}

func TestRecordTransaction_Validation(t *testing.T) {
	h := NewRecordTransactionHandler(newFakeLedgerRepo(), &fakeBus{}, true)

	tests := []struct {
		name    string
		cmd     RecordTransactionCommand
		wantErr error
	}{
		{
			name:    "bad user ID",
			cmd:     RecordTransactionCommand{UserID: "nope", Type: "earned", Points: 10},
			wantErr: shared.ErrInvalidID,
		},
		{
			name:    "unknown type",
			cmd:     RecordTransactionCommand{UserID: recordTestUser, Type: "gifted", Points: 10},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "zero points",
			cmd:     RecordTransactionCommand{UserID: recordTestUser, Type: "earned", Points: 0},
			wantErr: shared.ErrZeroPoints,
		},
		{
			name:    "sign mismatch",
			cmd:     RecordTransactionCommand{UserID: recordTestUser, Type: "penalty", Points: 10},
			wantErr: shared.ErrWrongPointsSign,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecordTransaction_NegativeBalancePolicy(t *testing.T) {
	repo := newFakeLedgerRepo()
	bus := &fakeBus{}

	// Policy off: the debit is rejected and nothing is written.
	strict := NewRecordTransactionHandler(repo, bus, false)
	_, err := strict.Handle(context.Background(), RecordTransactionCommand{
		UserID: recordTestUser,
		Type:   "penalty",
		Points: -10,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRejected)

	balance, err := repo.GetBalance(context.Background(), shared.UserID(recordTestUser))
	require.NoError(t, err)
	assert.Equal(t, shared.Points(0), balance.Balance)
	assert.Empty(t, bus.byType(shared.EventPointsRecorded))

	// Policy on: the same debit goes through and the balance goes negative.
	lenient := NewRecordTransactionHandler(repo, bus, true)
	res, err := lenient.Handle(context.Background(), RecordTransactionCommand{
		UserID: recordTestUser,
		Type:   "penalty",
		Points: -10,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.Points(-10), res.NewBalance)
}

func TestRecordTransaction_ConcurrentSameUser(t *testing.T) {
	repo := newFakeLedgerRepo()
	h := NewRecordTransactionHandler(repo, &fakeBus{}, true)

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), RecordTransactionCommand{
				UserID: recordTestUser,
				Type:   "earned",
				Points: 10,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	summary, err := repo.GetSummary(context.Background(), shared.UserID(recordTestUser))
	require.NoError(t, err)
	assert.Equal(t, writers, summary.Count)
	assert.Equal(t, shared.Points(writers*10), summary.Balance)

	balance, err := repo.GetBalance(context.Background(), shared.UserID(recordTestUser))
	require.NoError(t, err)
	assert.Equal(t, summary.Balance, balance.Balance, "cached balance must equal the ledger sum")
}
