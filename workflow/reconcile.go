package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/payment"
	"github.com/blomoto/garage_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Outcome is the terminal branch a webhook delivery lands on. Every branch
// is acknowledged to the provider with HTTP 200; the outcome only shows in
// the response body and the audit trail.
type Outcome string

const (
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeNotSuccessful      Outcome = "not_success"
	OutcomeMetadataMissing    Outcome = "metadata_missing"
	OutcomeAlreadyApplied     Outcome = "already_applied"
	OutcomeApplied            Outcome = "applied"
)

// AckStatus is the status string placed in the provider-facing
// acknowledgment body. Applied and already-applied are indistinguishable on
// the wire; the provider only needs to know the delivery landed.
func (o Outcome) AckStatus() string {
	switch o {
	case OutcomeApplied, OutcomeAlreadyApplied:
		return "ok"
	default:
		return string(o)
	}
}

// amountMismatchTolerance absorbs rounding differences between what a
// callback asserts and what the provider reports.
var amountMismatchTolerance = decimal.NewFromInt(1)

// AmountMismatch reports whether an asserted callback amount disagrees with
// the provider-verified amount beyond tolerance. Zero asserted means the
// callback carried no amount and there is nothing to compare.
func AmountMismatch(asserted, verified decimal.Decimal) bool {
	if asserted.IsZero() || verified.IsZero() {
		return false
	}
	return asserted.Sub(verified).Abs().GreaterThan(amountMismatchTolerance)
}

// EvaluateVerification is the pure decision step between verify and apply.
// It never touches the database. OutcomeApplied here means "eligible to
// apply"; whether it becomes applied or already-applied is decided by the
// conditional update in applyVerified.
func EvaluateVerification(verified *payment.Transaction, verifyErr error, callbackMeta map[string]string) (Outcome, payment.CorrelationKey) {
	if verifyErr != nil || verified == nil {
		return OutcomeVerificationFailed, payment.CorrelationKey{}
	}
	if verified.Status != payment.StatusSucceeded {
		return OutcomeNotSuccessful, payment.CorrelationKey{}
	}
	// Callback metadata is consulted first, the verified transaction's own
	// metadata second; either source may carry the correlation key.
	if key, ok := payment.ParseCorrelationKey(callbackMeta); ok {
		return OutcomeApplied, key
	}
	if key, ok := payment.ParseCorrelationKey(verified.Metadata); ok {
		return OutcomeApplied, key
	}
	return OutcomeMetadataMissing, payment.CorrelationKey{}
}

// ReconcileResult summarizes one delivery's processing for logging and the
// acknowledgment body.
type ReconcileResult struct {
	Outcome        Outcome
	Provider       string
	TransactionId  string
	Correlation    payment.CorrelationKey
	VerifiedAmount decimal.Decimal
	AmountAnomaly  bool
}

type Reconciler struct {
	registry *payment.Registry
}

func NewReconciler(registry *payment.Registry) *Reconciler {
	return &Reconciler{registry: registry}
}

// ProcessTransaction runs verify → reconcile → notify for one provider
// transaction. The incoming payload (assertedAmount, callbackMeta) is never
// trusted for state changes; the only trusted signal is the provider's own
// answer to RetrieveTransaction. Called from webhook deliveries and from
// client-side status polls alike.
func (r *Reconciler) ProcessTransaction(ctx context.Context, providerName, transactionId string, assertedAmount decimal.Decimal, callbackMeta map[string]string) ReconcileResult {
	logger := config.GetLogger()
	result := ReconcileResult{Provider: providerName, TransactionId: transactionId}

	provider, err := r.registry.Get(providerName)
	if err != nil {
		result.Outcome = OutcomeVerificationFailed
		config.LogError(logger, "reconcile.go", "ProcessTransaction", "resolveProvider", providerName, err)
		return result
	}

	// Best-effort cross-instance serialization per transaction. Losing the
	// lock (or running without Redis) is safe: the conditional update in
	// applyVerified remains the final guard.
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("reconcile:%s:%s", providerName, transactionId)
		if lock, lockErr := locker.Obtain(ctx, lockKey, 30*time.Second, nil); lockErr == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	verified, verifyErr := provider.RetrieveTransaction(ctx, transactionId)
	if verifyErr != nil {
		verifyErr = &utils.VerificationError{Provider: providerName, TransactionId: transactionId, Err: verifyErr}
	}

	outcome, key := EvaluateVerification(verified, verifyErr, callbackMeta)
	result.Outcome = outcome
	result.Correlation = key

	if verified != nil {
		result.VerifiedAmount = verified.Amount
		if AmountMismatch(assertedAmount, verified.Amount) {
			result.AmountAnomaly = true
			logger.WithFields(logrus.Fields{
				"provider":        providerName,
				"transaction_id":  transactionId,
				"asserted_amount": assertedAmount.String(),
				"verified_amount": verified.Amount.String(),
			}).Warn("payment amount mismatch between callback and provider, verified amount wins")
		}
		r.mirrorTransaction(ctx, providerName, transactionId, verified, key, outcome)
	}

	switch outcome {
	case OutcomeVerificationFailed:
		config.LogError(logger, "reconcile.go", "ProcessTransaction", "verify", transactionId, verifyErr)
		return result
	case OutcomeNotSuccessful:
		logger.WithFields(logrus.Fields{
			"provider":        providerName,
			"transaction_id":  transactionId,
			"provider_status": verified.ProviderStatus,
		}).Info("transaction not successful, nothing applied")
		return result
	case OutcomeMetadataMissing:
		logger.WithFields(logrus.Fields{
			"provider":       providerName,
			"transaction_id": transactionId,
		}).Warn("transaction metadata carries no usable correlation key")
		return result
	}

	result.Outcome = r.applyVerified(ctx, providerName, transactionId, verified, key)
	r.mirrorTransaction(ctx, providerName, transactionId, verified, key, result.Outcome)
	return result
}

// applyVerified is the only stage allowed to mutate financial state. The
// status check and the write are one conditional UPDATE inside the models
// layer, so concurrent deliveries of the same transaction cannot both apply.
func (r *Reconciler) applyVerified(ctx context.Context, providerName, transactionId string, verified *payment.Transaction, key payment.CorrelationKey) Outcome {
	logger := config.GetLogger()
	method := models.PaymentMethod(providerName)

	switch key.ReferenceType {
	case models.ReferenceTypeAppointment:
		appointment, err := models.GetAppointment(ctx, key.ReferenceId)
		if err != nil {
			config.LogError(logger, "reconcile.go", "applyVerified", "appointmentLookup", key.ReferenceId, err)
			return OutcomeMetadataMissing
		}
		applied, err := models.MarkAppointmentPaid(ctx, appointment.ID, transactionId, method)
		if err != nil {
			config.LogError(logger, "reconcile.go", "applyVerified", "markAppointmentPaid", key.ReferenceId, err)
			return OutcomeVerificationFailed
		}
		if !applied {
			return OutcomeAlreadyApplied
		}
		notifyDocumentEvent(ctx, "appointment", appointment.ID, fmt.Sprintf("RDV-%d", appointment.ID), "paid", appointment.ClientId, appointment.GarageId, verified.Amount, verified.Currency)
		return OutcomeApplied

	case models.ReferenceTypeInvoice:
		invoice, err := models.GetInvoice(ctx, key.ReferenceId)
		if err != nil {
			config.LogError(logger, "reconcile.go", "applyVerified", "invoiceLookup", key.ReferenceId, err)
			return OutcomeMetadataMissing
		}
		applied, err := models.ApplyPayment(ctx, invoice.ID, verified.Amount, method, transactionId)
		if err != nil {
			config.LogError(logger, "reconcile.go", "applyVerified", "applyPayment", key.ReferenceId, err)
			return OutcomeVerificationFailed
		}
		if !applied {
			return OutcomeAlreadyApplied
		}
		logger.WithFields(logrus.Fields{
			"invoice":        invoice.InvoiceNumber,
			"provider":       providerName,
			"transaction_id": transactionId,
			"paid_amount":    verified.Amount.String(),
		}).Info("invoice paid")
		notifyDocumentEvent(ctx, "invoice", invoice.ID, invoice.InvoiceNumber, "paid", invoice.ClientId, invoice.GarageId, verified.Amount, verified.Currency)
		return OutcomeApplied

	default:
		return OutcomeMetadataMissing
	}
}

// mirrorTransaction caches the last verified outcome for audit. Errors are
// logged and swallowed; the mirror is not the source of truth.
func (r *Reconciler) mirrorTransaction(ctx context.Context, providerName, transactionId string, verified *payment.Transaction, key payment.CorrelationKey, outcome Outcome) {
	txn := &models.PaymentTransaction{
		Provider:              providerName,
		ExternalTransactionId: transactionId,
		UserId:                key.UserId,
		ReferenceType:         key.ReferenceType,
		ReferenceId:           key.ReferenceId,
		Amount:                verified.Amount,
		Currency:              verified.Currency,
		Status:                string(verified.Status),
		Outcome:               string(outcome),
		RawPayload:            verified.RawPayload,
	}
	if err := models.UpsertPaymentTransaction(ctx, txn); err != nil {
		config.LogError(config.GetLogger(), "reconcile.go", "mirrorTransaction", providerName, transactionId, err)
	}
}
