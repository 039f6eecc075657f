package authorization

import "context"

const (
	ObjectBilling      = "billing"
	ObjectInvoice      = "invoice"
	ObjectMeterReading = "meter_reading"
	ObjectPayment      = "payment"
	ObjectRoom         = "room"
	ObjectContract     = "contract"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionBillingPreview = "billing.preview"

	ActionInvoiceView         = "invoice.view"
	ActionInvoiceCreate       = "invoice.create"
	ActionInvoiceUpdateStatus = "invoice.update_status"
	ActionInvoiceDelete       = "invoice.delete"
	ActionInvoiceApplyLateFee = "invoice.apply_late_fee"
	ActionInvoiceMarkOverdue  = "invoice.mark_overdue"

	ActionMeterReadingView    = "meter_reading.view"
	ActionMeterReadingCorrect = "meter_reading.correct"

	ActionPaymentView       = "payment.view"
	ActionPaymentRecord     = "payment.record"
	ActionPaymentAttachSlip = "payment.attach_slip"
	ActionPaymentApprove    = "payment.approve"

	ActionRoomView   = "room.view"
	ActionRoomCreate = "room.create"

	ActionContractView      = "contract.view"
	ActionContractCreate    = "contract.create"
	ActionContractTerminate = "contract.terminate"

	ActionAuditLogView = "audit_log.view"
)

type Service interface {
	// Authorize checks the actor carried by ctx.
	Authorize(ctx context.Context, object string, action string) error
}
