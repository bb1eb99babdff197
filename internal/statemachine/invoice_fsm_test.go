package statemachine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
)

func newInvoice(status string, total, paid int64) *models.Invoice {
	return &models.Invoice{
		ID:            1,
		Status:        status,
		TotalAmount:   decimal.NewFromInt(total),
		PaidAmount:    decimal.NewFromInt(paid),
		BalanceAmount: decimal.NewFromInt(total - paid),
	}
}

func TestInvoiceFSM_PostAndPay(t *testing.T) {
	ctx := context.Background()
	inv := newInvoice(models.InvoiceStatusDraft, 1000, 0)

	require.NoError(t, NewInvoiceFSM(inv).Post(ctx))
	assert.Equal(t, models.InvoiceStatusPosted, inv.Status)

	inv.PaidAmount = decimal.NewFromInt(400)
	inv.BalanceAmount = decimal.NewFromInt(600)
	require.NoError(t, NewInvoiceFSM(inv).ApplyPayment(ctx))
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, inv.Status)

	// a second partial payment keeps the status
	inv.PaidAmount = decimal.NewFromInt(500)
	inv.BalanceAmount = decimal.NewFromInt(500)
	require.NoError(t, NewInvoiceFSM(inv).ApplyPayment(ctx))
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, inv.Status)

	inv.PaidAmount = decimal.NewFromInt(1000)
	inv.BalanceAmount = decimal.Zero
	require.NoError(t, NewInvoiceFSM(inv).ApplyPayment(ctx))
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
}

func TestInvoiceFSM_RejectsInvalidTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		inv  *models.Invoice
		run  func(f *InvoiceFSM) error
	}{
		{"pay a draft", newInvoice(models.InvoiceStatusDraft, 100, 0), func(f *InvoiceFSM) error { return f.ApplyPayment(ctx) }},
		{"post twice", newInvoice(models.InvoiceStatusPosted, 100, 0), func(f *InvoiceFSM) error { return f.Post(ctx) }},
		{"cancel with payments", newInvoice(models.InvoiceStatusPartiallyPaid, 100, 40), func(f *InvoiceFSM) error { return f.Cancel(ctx) }},
		{"void a paid invoice", newInvoice(models.InvoiceStatusPaid, 100, 100), func(f *InvoiceFSM) error { return f.Void(ctx) }},
		{"void a draft", newInvoice(models.InvoiceStatusDraft, 100, 0), func(f *InvoiceFSM) error { return f.Void(ctx) }},
		{"unpost with payments", newInvoice(models.InvoiceStatusPosted, 100, 10), func(f *InvoiceFSM) error { return f.Unpost(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.inv.Status
			err := tt.run(NewInvoiceFSM(tt.inv))
			assert.ErrorIs(t, err, ledger.ErrInvalidStatus)
			assert.Equal(t, before, tt.inv.Status)
		})
	}
}

func TestInvoiceFSM_CancelAndVoid(t *testing.T) {
	ctx := context.Background()

	draft := newInvoice(models.InvoiceStatusDraft, 100, 0)
	require.NoError(t, NewInvoiceFSM(draft).Cancel(ctx))
	assert.Equal(t, models.InvoiceStatusCancelled, draft.Status)

	posted := newInvoice(models.InvoiceStatusPosted, 100, 0)
	require.NoError(t, NewInvoiceFSM(posted).Void(ctx))
	assert.Equal(t, models.InvoiceStatusVoid, posted.Status)
}

func TestReceiptFSM(t *testing.T) {
	ctx := context.Background()
	r := &models.Receipt{ID: 3, Status: models.ReceiptStatusReceived}

	require.NoError(t, NewReceiptFSM(r).Deposit(ctx))
	assert.Equal(t, models.ReceiptStatusDeposited, r.Status)

	require.NoError(t, NewReceiptFSM(r).TransitionTo(ctx, models.ReceiptStatusCleared))
	assert.Equal(t, models.ReceiptStatusCleared, r.Status)

	err := NewReceiptFSM(r).TransitionTo(ctx, models.ReceiptStatusBounced)
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)

	err = NewReceiptFSM(r).TransitionTo(ctx, "lost")
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)
}
