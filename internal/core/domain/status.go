package domain

// Status is a step of the filing request lifecycle as shown to the request owner.
// It is a different vocabulary from AdminStatus; the two are never converted
// into each other.
type Status string

const (
	StatusPaymentPending      Status = "Pendiente de pago"
	StatusPaymentReceived     Status = "Pago recibido"
	StatusInReview            Status = "En revisión"
	StatusDocumentsIncomplete Status = "Documentación incompleta"
	StatusWithIRS             Status = "En proceso con el IRS"
	StatusApproved            Status = "Aprobada"
	StatusCompleted           Status = "Completada"
	StatusRejected            Status = "Rechazada"
)

// lifecycle is the canonical order used for progress computation.
var lifecycle = [...]Status{
	StatusPaymentPending,
	StatusPaymentReceived,
	StatusInReview,
	StatusDocumentsIncomplete,
	StatusWithIRS,
	StatusApproved,
	StatusCompleted,
	StatusRejected,
}

// Lifecycle returns the canonical status order.
func Lifecycle() []Status {
	out := make([]Status, len(lifecycle))
	copy(out, lifecycle[:])
	return out
}

// Index returns the 0-based position of s in the lifecycle, or -1 when s is
// not part of the canonical vocabulary.
func (s Status) Index() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// Known reports whether s belongs to the canonical vocabulary.
func (s Status) Known() bool { return s.Index() >= 0 }

// Terminal reports whether s ends the lifecycle.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusRejected }

// Step returns the 1-based step shown to the owner. Completed and rejected are
// alternative final outcomes, so both report the last step. Unknown statuses
// report step 0.
func (s Status) Step() int {
	if s.Terminal() {
		return len(lifecycle)
	}
	return s.Index() + 1
}

// Progress returns the completed fraction of the lifecycle in [0, 1].
func (s Status) Progress() float64 {
	return float64(s.Step()) / float64(len(lifecycle))
}

// AdminStatus is a value of the administrative vocabulary used for filtering,
// statistics and status updates.
type AdminStatus string

const (
	AdminStatusPending          AdminStatus = "Pendiente"
	AdminStatusInProgress       AdminStatus = "En proceso"
	AdminStatusPaymentScheduled AdminStatus = "Pago programado"
	AdminStatusPaymentReceived  AdminStatus = "Pago recibido"
	AdminStatusCompleted        AdminStatus = "Completado"
	AdminStatusCancelled        AdminStatus = "Cancelado"
	AdminStatusRejected         AdminStatus = "Rechazado"
)

// CountAll is the key of the unfiltered total in per-status counts.
const CountAll = "all"

var adminStatuses = [...]AdminStatus{
	AdminStatusPending,
	AdminStatusInProgress,
	AdminStatusPaymentScheduled,
	AdminStatusPaymentReceived,
	AdminStatusCompleted,
	AdminStatusCancelled,
	AdminStatusRejected,
}

// AdminStatuses returns the administrative vocabulary in display order.
func AdminStatuses() []AdminStatus {
	out := make([]AdminStatus, len(adminStatuses))
	copy(out, adminStatuses[:])
	return out
}

// Valid reports whether s belongs to the administrative vocabulary.
func (s AdminStatus) Valid() bool {
	for _, st := range adminStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// RequiresPaymentDate reports whether a transition into s must carry a payment date.
func (s AdminStatus) RequiresPaymentDate() bool { return s == AdminStatusPaymentScheduled }
