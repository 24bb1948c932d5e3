package ledger

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/mcclellann/lendlog/pkg/models"
)

const eventSettle = "settle"

// statusMachine wraps a transaction with its status state machine.
// ACTIVE → SETTLED is the only transition; SETTLED is terminal.
type statusMachine struct {
	tx  *models.Transaction
	fsm *fsm.FSM
}

func newStatusMachine(tx *models.Transaction) *statusMachine {
	return &statusMachine{
		tx: tx,
		fsm: fsm.NewFSM(
			tx.Status,
			fsm.Events{
				{Name: eventSettle, Src: []string{models.StatusActive}, Dst: models.StatusSettled},
			},
			fsm.Callbacks{},
		),
	}
}

// Settle transitions the transaction to SETTLED.
func (m *statusMachine) Settle(ctx context.Context) error {
	if !m.tx.MaySettle() {
		return fmt.Errorf("%w: transaction %s is %s", ErrInvalidState, m.tx.ID, m.tx.Status)
	}
	if err := m.fsm.Event(ctx, eventSettle); err != nil {
		return fmt.Errorf("failed to settle transaction: %w", err)
	}
	m.tx.Status = m.fsm.Current()
	return nil
}

// transitionTo moves the transaction to status, if that is a legal move.
func (m *statusMachine) transitionTo(ctx context.Context, status string) error {
	switch {
	case status == m.tx.Status:
		return nil
	case status == models.StatusSettled:
		return m.Settle(ctx)
	case status == models.StatusActive:
		return fmt.Errorf("%w: a settled transaction cannot be reopened", ErrInvalidState)
	default:
		return invalid("status", fmt.Sprintf("must be %s or %s", models.StatusActive, models.StatusSettled))
	}
}
