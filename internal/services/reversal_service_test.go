package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
)

func TestReverse_ReceiptPosting(t *testing.T) {
	svc, repos := setupServices(t)
	ctx := context.Background()
	receipt := createReceipt(t, svc, "RCT-REV", "1500")

	posted, err := svc.Posting.Post(ctx, testActor, receiptPost(receipt))
	require.NoError(t, err)

	reversal, err := svc.Reversal.Reverse(ctx, testActor, posted.VoucherNo, "  entered twice ")
	require.NoError(t, err)
	assert.Equal(t, "RV-2025-000001", reversal.VoucherNo)
	assert.Equal(t, models.KindReversal, reversal.Kind)
	assert.Equal(t, 1, reversal.ReversalDepth)
	assert.Equal(t, posted.VoucherNo, deref(reversal.ReversalOf))
	assert.Equal(t, posted.VoucherNo, reversal.RootVoucherNo)
	assert.Equal(t, acctReceivable, reversal.Debit.AccountID)
	assert.Equal(t, acctCash, reversal.Credit.AccountID)
	assert.True(t, reversal.Amount.Equal(posted.Amount))
	assert.Equal(t, "Reversal of JV-2025-000001: entered twice", reversal.Narration)

	original, err := svc.Posting.GetVoucher(ctx, testActor, posted.VoucherNo)
	require.NoError(t, err)
	assert.Equal(t, reversal.VoucherNo, deref(original.ReversedBy))

	stored, err := svc.Receipt.Get(ctx, testActor, receipt.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPosted)
	assert.Nil(t, stored.VoucherNo)

	// every account nets to zero across the pair
	for account, net := range accountNet(t, repos, models.SourceReceipt, receipt.ID) {
		assert.True(t, net.IsZero(), "account %d nets to %s", account, net)
	}

	history, err := svc.Posting.History(ctx, testActor, reversal.VoucherNo)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	_, err = svc.Reversal.Reverse(ctx, testActor, posted.VoucherNo, "again")
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)

	reposted, err := svc.Posting.Post(ctx, testActor, receiptPost(receipt))
	require.NoError(t, err)
	assert.Equal(t, "JV-2025-000002", reposted.VoucherNo)
}

func TestReverse_RequiresReason(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	receipt := createReceipt(t, svc, "RCT-NOREASON", "50")
	posted, err := svc.Posting.Post(ctx, testActor, receiptPost(receipt))
	require.NoError(t, err)

	_, err = svc.Reversal.Reverse(ctx, testActor, posted.VoucherNo, "   ")
	assert.ErrorIs(t, err, ledger.ErrEmptyReason)

	_, err = svc.Reversal.Reverse(ctx, testActor, "JV-2025-000404", "typo")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	v, err := svc.Posting.GetVoucher(ctx, testActor, posted.VoucherNo)
	require.NoError(t, err)
	assert.Nil(t, v.ReversedBy)
}

func TestReverse_ReversalOfReversalRepostsSource(t *testing.T) {
	svc, repos := setupServices(t)
	ctx := context.Background()
	receipt := createReceipt(t, svc, "RCT-ROR", "800")

	posted, err := svc.Posting.Post(ctx, testActor, receiptPost(receipt))
	require.NoError(t, err)
	first, err := svc.Reversal.Reverse(ctx, testActor, posted.VoucherNo, "wrong customer")
	require.NoError(t, err)

	second, err := svc.Reversal.Reverse(ctx, testActor, first.VoucherNo, "customer was right")
	require.NoError(t, err)
	assert.Equal(t, "RV-2025-000002", second.VoucherNo)
	assert.Equal(t, models.KindReversalOfReversal, second.Kind)
	assert.Equal(t, 2, second.ReversalDepth)
	assert.Equal(t, posted.VoucherNo, second.RootVoucherNo)
	assert.Equal(t, acctCash, second.Debit.AccountID)
	assert.Equal(t, acctReceivable, second.Credit.AccountID)

	stored, err := svc.Receipt.Get(ctx, testActor, receipt.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPosted)
	assert.Equal(t, second.VoucherNo, deref(stored.VoucherNo))

	// reversing the re-posting unposts the receipt again
	third, err := svc.Reversal.Reverse(ctx, testActor, second.VoucherNo, "final answer")
	require.NoError(t, err)
	assert.Equal(t, models.KindReversalOfReversal, third.Kind)
	assert.Equal(t, 3, third.ReversalDepth)
	assert.Equal(t, second.VoucherNo, deref(third.ReversalOf))
	assert.Equal(t, posted.VoucherNo, third.RootVoucherNo)

	stored, err = svc.Receipt.Get(ctx, testActor, receipt.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPosted)

	net := accountNet(t, repos, models.SourceReceipt, receipt.ID)
	assert.True(t, net[acctCash].IsZero())
	assert.True(t, net[acctReceivable].IsZero())
}

func TestReverse_InvoiceReturnsToDraft(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	invoice := createPostedInvoice(t, svc, "INV-REV", "600")

	_, err := svc.Reversal.Reverse(ctx, testActor, deref(invoice.VoucherNo), "billed the wrong period")
	require.NoError(t, err)

	stored, err := svc.Invoice.Get(ctx, testActor, invoice.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPosted)
	assert.Equal(t, models.InvoiceStatusDraft, stored.Status)
}

func TestReverse_InvoiceWithPaymentsIsRejected(t *testing.T) {
	svc, _ := setupServices(t)
	ctx := context.Background()
	invoice := createPostedInvoice(t, svc, "INV-PAID", "400")
	receipt := createReceipt(t, svc, "RCT-PAID", "100")

	_, err := svc.Allocation.Allocate(ctx, testActor, receipt.ID, []ledger.AllocationLine{
		{InvoiceID: invoice.ID, Amount: dec("100")},
	})
	require.NoError(t, err)

	_, err = svc.Reversal.Reverse(ctx, testActor, deref(invoice.VoucherNo), "undo")
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)

	v, err := svc.Posting.GetVoucher(ctx, testActor, deref(invoice.VoucherNo))
	require.NoError(t, err)
	assert.Nil(t, v.ReversedBy)
}
