package models

// Document amounts are denominated in West African CFA francs unless a
// payment request says otherwise.
const DefaultCurrency = "XOF"

type UserRole string

const (
	UserRoleClient UserRole = "client"
	UserRoleGarage UserRole = "garage"
	UserRoleAdmin  UserRole = "admin"
)

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// terminal statuses: accepted, rejected, expired
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusAccepted || s == QuoteStatusRejected || s == QuoteStatusExpired
}

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// terminal statuses: paid, cancelled
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// Payable reports whether a verified payment may still be applied.
func (s InvoiceStatus) Payable() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent || s == InvoiceStatusOverdue
}

type AppointmentPaymentStatus string

const (
	AppointmentPaymentStatusPending  AppointmentPaymentStatus = "pending"
	AppointmentPaymentStatusPaid     AppointmentPaymentStatus = "paid"
	AppointmentPaymentStatusRefunded AppointmentPaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOnline       PaymentMethod = "online"
	PaymentMethodPaygate      PaymentMethod = "paygate"
	PaymentMethodKkiapay      PaymentMethod = "kkiapay"
	PaymentMethodFedapay      PaymentMethod = "fedapay"
)

func IsValidManualPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodOnline:
		return true
	}
	return false
}

// ReferenceType is the document kind a payment transaction settles.
type ReferenceType string

const (
	ReferenceTypeAppointment ReferenceType = "appointment"
	ReferenceTypeInvoice     ReferenceType = "invoice"
)

func IsValidReferenceType(t ReferenceType) bool {
	return t == ReferenceTypeAppointment || t == ReferenceTypeInvoice
}

type DocumentKind string

const (
	DocumentKindQuote   DocumentKind = "quote"
	DocumentKindInvoice DocumentKind = "invoice"
)
