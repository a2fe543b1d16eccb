// internal/services/errors.go
package services

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindStateConflict ErrorKind = "state_conflict"
	KindNotFound      ErrorKind = "not_found"
	KindConsistency   ErrorKind = "consistency"
)

// LedgerError is returned for every rejected ledger operation. Code is stable
// and safe to expose to API clients.
type LedgerError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *LedgerError) Error() string {
	return e.Message
}

func newLedgerError(kind ErrorKind, code, message string) *LedgerError {
	return &LedgerError{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidAmount               = newLedgerError(KindValidation, "INVALID_AMOUNT", "amount must be positive with at most 4 decimal places")
	ErrAmountExceedsPayment        = newLedgerError(KindValidation, "AMOUNT_EXCEEDS_PAYMENT", "verified amount exceeds the payment amount")
	ErrInvalidFeePercentage        = newLedgerError(KindValidation, "INVALID_FEE_PERCENTAGE", "fee percentage must be between 0 and 100")
	ErrInvalidPayoutPercentage     = newLedgerError(KindValidation, "INVALID_PAYOUT_PERCENTAGE", "payout percentage must be between 0 and 100")
	ErrMissingGrossAmount          = newLedgerError(KindValidation, "MISSING_GROSS_AMOUNT", "no held amount or booking total to release")
	ErrBelowMinimumCashout         = newLedgerError(KindValidation, "BELOW_MINIMUM_CASHOUT", "amount is below the minimum cashout")
	ErrRemainderDispositionNeeded  = newLedgerError(KindValidation, "REMAINDER_DISPOSITION_REQUIRED", "a partial payout needs a remainder disposition")
	ErrNotCollaborationParticipant = newLedgerError(KindValidation, "NOT_COLLABORATION_PARTICIPANT", "only the brand and creator of a collaboration can dispute it")
	ErrGatewayNotConfigured        = newLedgerError(KindValidation, "GATEWAY_NOT_CONFIGURED", "no payment gateway is configured for automated verification")
	ErrMissingGatewayReference     = newLedgerError(KindValidation, "MISSING_GATEWAY_REFERENCE", "payment has no gateway reference")

	ErrAlreadyVerified           = newLedgerError(KindStateConflict, "ALREADY_VERIFIED", "payment has already been verified")
	ErrInvalidTransition         = newLedgerError(KindStateConflict, "INVALID_TRANSITION", "transition not allowed from the current state")
	ErrCollaborationNotCompleted = newLedgerError(KindStateConflict, "COLLABORATION_NOT_COMPLETED", "collaboration is not completed")
	ErrNoEscrowedPayment         = newLedgerError(KindStateConflict, "NO_ESCROWED_PAYMENT", "no escrowed payment found for the collaboration")
	ErrDisputeBlocksRelease      = newLedgerError(KindStateConflict, "DISPUTE_BLOCKS_RELEASE", "an unresolved dispute blocks the release")
	ErrInsufficientBalance       = newLedgerError(KindStateConflict, "INSUFFICIENT_BALANCE", "amount exceeds the available balance")
	ErrCashoutProcessed          = newLedgerError(KindStateConflict, "CASHOUT_ALREADY_PROCESSED", "cashout request has already been processed")
	ErrDisputeAlreadyOpen        = newLedgerError(KindStateConflict, "DISPUTE_ALREADY_OPEN", "collaboration already has an unresolved dispute")
	ErrDisputeClosed             = newLedgerError(KindStateConflict, "DISPUTE_CLOSED", "dispute is already resolved or dismissed")
	ErrGatewayPaymentIncomplete  = newLedgerError(KindStateConflict, "GATEWAY_PAYMENT_INCOMPLETE", "gateway has not confirmed the payment")

	ErrPaymentNotFound           = newLedgerError(KindNotFound, "PAYMENT_NOT_FOUND", "payment not found")
	ErrCollaborationNotFound     = newLedgerError(KindNotFound, "COLLABORATION_NOT_FOUND", "collaboration not found")
	ErrBookingNotFound           = newLedgerError(KindNotFound, "BOOKING_NOT_FOUND", "booking not found")
	ErrWalletNotFound            = newLedgerError(KindNotFound, "WALLET_NOT_FOUND", "wallet not found")
	ErrWalletTransactionNotFound = newLedgerError(KindNotFound, "WALLET_TRANSACTION_NOT_FOUND", "wallet transaction not found")
	ErrCashoutNotFound           = newLedgerError(KindNotFound, "CASHOUT_NOT_FOUND", "cashout request not found")
	ErrDisputeNotFound           = newLedgerError(KindNotFound, "DISPUTE_NOT_FOUND", "dispute not found")

	ErrLedgerInconsistent = newLedgerError(KindConsistency, "LEDGER_INCONSISTENT", "ledger records disagree")
)

// KindOf returns the kind of the first LedgerError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr.Kind, true
	}
	return "", false
}

func notFoundOr(err error, notFound *LedgerError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
