package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
)

func TestAllocate_SplitsReceiptAcrossInvoices(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	first := createPostedInvoice(t, svc, "INV-A", "1000")
	second := createPostedInvoice(t, svc, "INV-B", "800")
	receipt := createReceipt(t, svc, "RCT-SPLIT", "1500")

	result, err := svc.Allocation.Allocate(ctx, testActor, receipt.ID, []ledger.AllocationLine{
		{InvoiceID: first.ID, Amount: dec("1000")},
		{InvoiceID: second.ID, Amount: dec("500")},
	})
	require.NoError(t, err)
	assert.True(t, result.AllocatedNow.Equal(dec("1500")))
	assert.True(t, result.ReceiptAllocated.Equal(dec("1500")))
	assert.True(t, result.Unallocated.IsZero())
	assert.Len(t, result.Allocations, 2)

	paid, err := svc.Invoice.Get(ctx, testActor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, paid.Status)
	assert.True(t, paid.BalanceAmount.IsZero())

	partial, err := svc.Invoice.Get(ctx, testActor, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, partial.Status)
	assert.True(t, partial.PaidAmount.Equal(dec("500")))
	assert.True(t, partial.BalanceAmount.Equal(dec("300")))
	assert.True(t, partial.BalanceConsistent())

	allocations, err := svc.Allocation.List(ctx, testActor, receipt.ID)
	require.NoError(t, err)
	assert.Len(t, allocations, 2)

	// the receipt is fully used, so any further line overdraws it
	_, err = svc.Allocation.Allocate(ctx, testActor, receipt.ID, []ledger.AllocationLine{
		{InvoiceID: second.ID, Amount: dec("100")},
	})
	assert.ErrorIs(t, err, ledger.ErrReceiptOverdrawn)
}

func TestAllocate_IsAllOrNothing(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	first := createPostedInvoice(t, svc, "INV-C", "1000")
	second := createPostedInvoice(t, svc, "INV-D", "200")
	receipt := createReceipt(t, svc, "RCT-OVER", "1500")

	_, err := svc.Allocation.Allocate(ctx, testActor, receipt.ID, []ledger.AllocationLine{
		{InvoiceID: first.ID, Amount: dec("900")},
		{InvoiceID: second.ID, Amount: dec("300")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrOverAllocation)

	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Violations, 1)
	assert.Equal(t, second.ID, ve.Violations[0].InvoiceID)

	untouched, err := svc.Invoice.Get(ctx, testActor, first.ID)
	require.NoError(t, err)
	assert.True(t, untouched.PaidAmount.IsZero())
	assert.Equal(t, models.InvoiceStatusPosted, untouched.Status)

	stored, err := svc.Receipt.Get(ctx, testActor, receipt.ID)
	require.NoError(t, err)
	assert.True(t, stored.AllocatedAmount.IsZero())
	assert.Empty(t, stored.Allocations)
}

func TestAllocate_RejectsDraftAndUnknownInvoices(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	draft, err := svc.Invoice.Create(ctx, testActor, CreateInvoiceRequest{
		CustomerID: 42, InvoiceNumber: "INV-DRAFT", DueDate: date("2025-02-01"), GrossAmount: dec("100"),
	})
	require.NoError(t, err)
	receipt := createReceipt(t, svc, "RCT-DRAFT", "500")

	_, err = svc.Allocation.Allocate(ctx, testActor, receipt.ID, []ledger.AllocationLine{
		{InvoiceID: draft.ID, Amount: dec("50")},
		{InvoiceID: 999, Amount: dec("50")},
	})
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has(ledger.CodeInvoiceNotPayable))
	assert.True(t, ve.Has(ledger.CodeUnknownInvoice))

	_, err = svc.Allocation.Allocate(ctx, testActor, receipt.ID, nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = svc.Allocation.Allocate(ctx, testActor, 404, []ledger.AllocationLine{{InvoiceID: draft.ID, Amount: dec("1")}})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestValidateAllocation_WarnsOnStaleReceiptAmount(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	invoice := createPostedInvoice(t, svc, "INV-V", "700")
	receipt := createReceipt(t, svc, "RCT-V", "1000")

	check, err := svc.Allocation.Validate(ctx, testActor, ValidateAllocationRequest{
		ReceiptID:     &receipt.ID,
		ReceiptAmount: dec("900"),
		Allocations:   []ledger.AllocationLine{{InvoiceID: invoice.ID, Amount: dec("700")}},
	})
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.True(t, check.Remainder.Equal(dec("300")))
	require.Len(t, check.Warnings, 2)
	assert.Contains(t, check.Warnings[0], "stays unallocated")
	assert.Contains(t, check.Warnings[1], "differs")

	// without a receipt the submitted amount is the limit
	check, err = svc.Allocation.Validate(ctx, testActor, ValidateAllocationRequest{
		ReceiptAmount: dec("500"),
		Allocations:   []ledger.AllocationLine{{InvoiceID: invoice.ID, Amount: dec("700")}},
	})
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Error(t, check.Err())
}

func TestReceipt_BouncedReceiptCannotBeAllocated(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	invoice := createPostedInvoice(t, svc, "INV-BOUNCE", "100")
	receipt := createReceipt(t, svc, "RCT-BOUNCE", "100")

	bounced, err := svc.Receipt.ChangeStatus(ctx, testActor, receipt.ID, models.ReceiptStatusBounced)
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptStatusBounced, bounced.Status)

	_, err = svc.Allocation.Allocate(ctx, testActor, receipt.ID, []ledger.AllocationLine{
		{InvoiceID: invoice.ID, Amount: dec("100")},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)
}
