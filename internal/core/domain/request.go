package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxDocuments is the maximum number of documents attached to one request.
const MaxDocuments = 5

// AccountType is the kind of bank account used for the refund deposit.
type AccountType string

const (
	AccountSavings  AccountType = "Savings"
	AccountChecking AccountType = "Checking"
)

// ServiceLevel is the plan tier chosen at submission time.
type ServiceLevel string

const (
	ServiceStandard ServiceLevel = "standard"
	ServicePremium  ServiceLevel = "premium"
)

// Plan fixes the price of a filing and its bonus eligibility.
type Plan struct {
	Level ServiceLevel `json:"serviceLevel"`
	Price float64      `json:"price"`
}

// BonusEligible reports whether the plan qualifies for the refund bonus.
func (p Plan) BonusEligible() bool { return p.Level == ServicePremium }

var plans = map[ServiceLevel]Plan{
	ServiceStandard: {Level: ServiceStandard, Price: 60},
	ServicePremium:  {Level: ServicePremium, Price: 120},
}

// PlanFor returns the catalog plan for a service level.
func PlanFor(level ServiceLevel) (Plan, bool) {
	p, ok := plans[level]
	return p, ok
}

// PersonalInfo holds the taxpayer's identifying fields.
type PersonalInfo struct {
	FullName  string `json:"fullName"  bson:"full_name"`
	TaxID     string `json:"ssn"       bson:"ssn"`
	BirthDate string `json:"birthDate" bson:"birth_date"`
	Email     string `json:"email"     bson:"email"`
	Phone     string `json:"phone"     bson:"phone"`
	Address   string `json:"address"   bson:"address"`
}

// BankingInfo holds the refund deposit account.
type BankingInfo struct {
	BankName      string      `json:"bankName"      bson:"bank_name"`
	AccountType   AccountType `json:"accountType"   bson:"account_type"`
	AccountNumber string      `json:"accountNumber" bson:"account_number"`
	RoutingNumber string      `json:"routingNumber" bson:"routing_number"`
}

// StatusHistoryEntry records a single status transition. Entries are never
// modified once appended.
type StatusHistoryEntry struct {
	Status      string    `json:"status"            bson:"status"`
	Timestamp   time.Time `json:"timestamp"         bson:"timestamp"`
	Description string    `json:"description"       bson:"description"`
	Comment     string    `json:"comment,omitempty" bson:"comment,omitempty"`
}

// AdminNote is an internal note appended by an administrator.
type AdminNote struct {
	Note      string    `json:"note"      bson:"note"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// DocumentRef points to an uploaded document.
type DocumentRef struct {
	Name string `json:"name" bson:"name"`
	Size int64  `json:"size" bson:"size"`
	URL  string `json:"url,omitempty" bson:"url,omitempty"`
}

// FilingRequest is the core aggregate root.
type FilingRequest struct {
	ConfirmationNumber string               `json:"confirmationNumber"    bson:"_id"`
	OwnerUID           string               `json:"userId"                bson:"user_id"`
	Personal           PersonalInfo         `json:"personalInfo"          bson:"personal_info"`
	Banking            BankingInfo          `json:"bankInfo"              bson:"bank_info"`
	PaymentMethod      string               `json:"paymentMethod"         bson:"payment_method"`
	ServiceLevel       ServiceLevel         `json:"serviceLevel"          bson:"service_level"`
	Price              float64              `json:"price"                 bson:"price"`
	Status             string               `json:"status"                bson:"status"`
	PaymentDate        *time.Time           `json:"paymentDate,omitempty" bson:"payment_date,omitempty"`
	StatusHistory      []StatusHistoryEntry `json:"statusHistory"         bson:"status_history"`
	AdminNotes         []AdminNote          `json:"adminNotes"            bson:"admin_notes"`
	Documents          []DocumentRef        `json:"documents"             bson:"documents"`
	CreatedAt          time.Time            `json:"createdAt"             bson:"created_at"`
	UpdatedAt          time.Time            `json:"updatedAt"             bson:"updated_at"`
}

// LifecycleStatus interprets the stored status in the owner-facing vocabulary.
func (r *FilingRequest) LifecycleStatus() Status { return Status(r.Status) }

// AdminStatus interprets the stored status in the administrative vocabulary.
func (r *FilingRequest) AdminStatus() AdminStatus { return AdminStatus(r.Status) }

// StatusUpdate is an admin-initiated transition.
type StatusUpdate struct {
	Status      AdminStatus `json:"status"`
	Comment     string      `json:"comment"`
	PaymentDate *time.Time  `json:"paymentDate,omitempty"`
}

// Check enforces the transition rules that do not depend on the request.
func (u StatusUpdate) Check() error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
	}
	if strings.TrimSpace(u.Comment) == "" {
		return ErrCommentRequired
	}
	if u.Status.RequiresPaymentDate() && (u.PaymentDate == nil || u.PaymentDate.IsZero()) {
		return ErrPaymentDateRequired
	}
	return nil
}

// HistoryEntry builds the history entry recorded for u.
func (u StatusUpdate) HistoryEntry(at time.Time) StatusHistoryEntry {
	return StatusHistoryEntry{
		Status:      string(u.Status),
		Timestamp:   at.UTC(),
		Description: "Status changed to " + string(u.Status),
		Comment:     strings.TrimSpace(u.Comment),
	}
}

// ApplyStatusUpdate moves the request to u.Status and appends one history entry.
func (r *FilingRequest) ApplyStatusUpdate(u StatusUpdate, at time.Time) error {
	if err := u.Check(); err != nil {
		return err
	}
	r.Status = string(u.Status)
	if u.Status.RequiresPaymentDate() {
		d := u.PaymentDate.UTC()
		r.PaymentDate = &d
	}
	r.StatusHistory = append(r.StatusHistory, u.HistoryEntry(at))
	r.UpdatedAt = at.UTC()
	return nil
}

// AppendNote appends an internal admin note.
func (r *FilingRequest) AppendNote(note string, at time.Time) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return ErrNoteRequired
	}
	r.AdminNotes = append(r.AdminNotes, AdminNote{Note: note, Timestamp: at.UTC()})
	r.UpdatedAt = at.UTC()
	return nil
}
