package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
)

// InvoiceFSM wraps an invoice with its state machine
type InvoiceFSM struct {
	invoice *models.Invoice
	fsm     *fsm.FSM
}

// NewInvoiceFSM creates a new invoice state machine
func NewInvoiceFSM(invoice *models.Invoice) *InvoiceFSM {
	ifsm := &InvoiceFSM{
		invoice: invoice,
	}

	ifsm.fsm = fsm.NewFSM(
		invoice.Status,
		fsm.Events{
			// draft → posted
			{Name: "post", Src: []string{models.InvoiceStatusDraft}, Dst: models.InvoiceStatusPosted},

			// posted → draft (posting reversed)
			{Name: "unpost", Src: []string{models.InvoiceStatusPosted}, Dst: models.InvoiceStatusDraft},

			// posted/partially_paid → partially_paid
			{Name: "pay_partial", Src: []string{models.InvoiceStatusPosted, models.InvoiceStatusPartiallyPaid}, Dst: models.InvoiceStatusPartiallyPaid},

			// posted/partially_paid → paid
			{Name: "pay", Src: []string{models.InvoiceStatusPosted, models.InvoiceStatusPartiallyPaid}, Dst: models.InvoiceStatusPaid},

			// draft/posted → cancelled
			{Name: "cancel", Src: []string{models.InvoiceStatusDraft, models.InvoiceStatusPosted}, Dst: models.InvoiceStatusCancelled},

			// posted → void
			{Name: "void", Src: []string{models.InvoiceStatusPosted}, Dst: models.InvoiceStatusVoid},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

func (i *InvoiceFSM) event(ctx context.Context, name string) error {
	if !i.fsm.Can(name) {
		return ledger.Errorf(ledger.CodeInvalidStatus, "invoice %d cannot %s in status %s", i.invoice.ID, name, i.invoice.Status)
	}
	if err := i.fsm.Event(ctx, name); err != nil {
		var same fsm.NoTransitionError
		if !errors.As(err, &same) {
			return fmt.Errorf("failed to %s invoice: %w", name, err)
		}
	}
	i.invoice.Status = i.fsm.Current()
	return nil
}

// Post transitions a draft invoice to posted
func (i *InvoiceFSM) Post(ctx context.Context) error {
	return i.event(ctx, "post")
}

// Unpost returns a posted invoice to draft. Invoices with payments stay posted.
func (i *InvoiceFSM) Unpost(ctx context.Context) error {
	if i.invoice.PaidAmount.IsPositive() {
		return ledger.Errorf(ledger.CodeInvalidStatus, "invoice %d has payments applied", i.invoice.ID)
	}
	return i.event(ctx, "unpost")
}

// ApplyPayment moves the invoice to paid or partially_paid according to its
// balance after the payment has been added.
func (i *InvoiceFSM) ApplyPayment(ctx context.Context) error {
	if i.invoice.BalanceAmount.Equal(decimal.Zero) {
		return i.event(ctx, "pay")
	}
	return i.event(ctx, "pay_partial")
}

// Cancel transitions the invoice to cancelled
func (i *InvoiceFSM) Cancel(ctx context.Context) error {
	if i.invoice.PaidAmount.IsPositive() {
		return ledger.Errorf(ledger.CodeInvalidStatus, "invoice %d has payments applied", i.invoice.ID)
	}
	return i.event(ctx, "cancel")
}

// Void transitions the invoice to void
func (i *InvoiceFSM) Void(ctx context.Context) error {
	if i.invoice.PaidAmount.IsPositive() {
		return ledger.Errorf(ledger.CodeInvalidStatus, "invoice %d has payments applied", i.invoice.ID)
	}
	return i.event(ctx, "void")
}

// Current returns the current state
func (i *InvoiceFSM) Current() string {
	return i.fsm.Current()
}

// Can checks if a transition is possible
func (i *InvoiceFSM) Can(event string) bool {
	return i.fsm.Can(event)
}
