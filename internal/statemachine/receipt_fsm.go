package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
)

// ReceiptFSM wraps a receipt with its banking state machine
type ReceiptFSM struct {
	receipt *models.Receipt
	fsm     *fsm.FSM
}

var receiptEvents = map[string]string{
	models.ReceiptStatusDeposited: "deposit",
	models.ReceiptStatusCleared:   "clear",
	models.ReceiptStatusBounced:   "bounce",
	models.ReceiptStatusReceived:  "reopen",
}

// NewReceiptFSM creates a new receipt state machine
func NewReceiptFSM(receipt *models.Receipt) *ReceiptFSM {
	rfsm := &ReceiptFSM{
		receipt: receipt,
	}

	rfsm.fsm = fsm.NewFSM(
		receipt.Status,
		fsm.Events{
			// received/bounced → deposited
			{Name: "deposit", Src: []string{models.ReceiptStatusReceived, models.ReceiptStatusBounced}, Dst: models.ReceiptStatusDeposited},

			// received/deposited → cleared
			{Name: "clear", Src: []string{models.ReceiptStatusReceived, models.ReceiptStatusDeposited}, Dst: models.ReceiptStatusCleared},

			// received/deposited → bounced
			{Name: "bounce", Src: []string{models.ReceiptStatusReceived, models.ReceiptStatusDeposited}, Dst: models.ReceiptStatusBounced},

			// deposited/bounced → received
			{Name: "reopen", Src: []string{models.ReceiptStatusDeposited, models.ReceiptStatusBounced}, Dst: models.ReceiptStatusReceived},
		},
		fsm.Callbacks{},
	)

	return rfsm
}

// TransitionTo moves the receipt to the target status
func (r *ReceiptFSM) TransitionTo(ctx context.Context, status string) error {
	event, ok := receiptEvents[status]
	if !ok {
		return ledger.Errorf(ledger.CodeInvalidStatus, "unknown receipt status %q", status)
	}
	if !r.fsm.Can(event) {
		return ledger.Errorf(ledger.CodeInvalidStatus, "receipt %d cannot move from %s to %s", r.receipt.ID, r.receipt.Status, status)
	}

	if err := r.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s receipt: %w", event, err)
	}

	r.receipt.Status = r.fsm.Current()
	return nil
}

// Deposit transitions the receipt to deposited
func (r *ReceiptFSM) Deposit(ctx context.Context) error {
	return r.TransitionTo(ctx, models.ReceiptStatusDeposited)
}

// Current returns the current state
func (r *ReceiptFSM) Current() string {
	return r.fsm.Current()
}
