package ledger

// ValidateAccountPair enforces the structural rule for a voucher: both accounts
// present and different. Existence and active status are checked by the caller
// against the account master.
func ValidateAccountPair(debitAccountID, creditAccountID uint) error {
	if debitAccountID == 0 || creditAccountID == 0 {
		return Errorf(CodeInvalidAccountPair, "debit and credit accounts are required")
	}
	if debitAccountID == creditAccountID {
		return Errorf(CodeInvalidAccountPair, "debit and credit account must differ (account %d)", debitAccountID)
	}
	return nil
}
