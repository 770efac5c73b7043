package client

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
	"github.com/taxdesk/filing-client/internal/core/validation"
	"github.com/taxdesk/filing-client/internal/infrastructure/cache"
)

// RequestForm is the editable state of a new filing request.
type RequestForm struct {
	FullName  string `json:"fullName"  validate:"required"`
	TaxID     string `json:"ssn"       validate:"required,taxid"`
	BirthDate string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Email     string `json:"email"     validate:"required,email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`

	BankName      string             `json:"bankName"      validate:"required"`
	AccountType   domain.AccountType `json:"accountType"   validate:"required,oneof=Savings Checking"`
	AccountNumber string             `json:"accountNumber" validate:"required,digits,min=5,max=17"`
	RoutingNumber string             `json:"routingNumber" validate:"required,digits,min=9,max=12"`

	PaymentMethod string              `json:"paymentMethod" validate:"required"`
	ServiceLevel  domain.ServiceLevel `json:"serviceLevel"`

	Attachments validation.AttachmentSet `json:"-" validate:"-"`
}

// SetTaxID stores raw as progressively formatted input.
func (f *RequestForm) SetTaxID(raw string) { f.TaxID = validation.FormatTaxID(raw) }

// Plan returns the selected plan.
func (f *RequestForm) Plan() (domain.Plan, bool) { return domain.PlanFor(f.ServiceLevel) }

// Submission sends filing requests for the signed-in user.
type Submission struct {
	session   *Session
	api       ports.RequestAPI
	cache     *cache.Cache
	validator *validation.Validator
	log       zerolog.Logger
}

func NewSubmission(session *Session, api ports.RequestAPI, c *cache.Cache, log zerolog.Logger) *Submission {
	return &Submission{
		session:   session,
		api:       api,
		cache:     c,
		validator: validation.New(),
		log:       log.With().Str("component", "submission").Logger(),
	}
}

// Validate checks the form without any network access.
func (s *Submission) Validate(form *RequestForm) error {
	errs := &validation.Errors{}
	if err := s.validator.Validate(form); err != nil {
		ve, ok := err.(*validation.Errors)
		if !ok {
			return err
		}
		errs = ve
	}
	if _, ok := form.Plan(); !ok {
		errs.Add("serviceLevel", "choose a plan")
	}
	return errs.Err()
}

// Submit validates form and sends it as one multipart request. The form is
// never modified, so a failed submission can be retried as is.
func (s *Submission) Submit(ctx context.Context, form *RequestForm) (*ports.Receipt, error) {
	if err := s.Validate(form); err != nil {
		return nil, err
	}
	owner := s.session.Current()
	if owner == nil {
		return nil, domain.ErrSessionExpired
	}
	plan, _ := form.Plan()

	receipt, err := s.api.CreateRequest(ctx, ports.NewFilingRequest{
		OwnerUID: owner.UID,
		Personal: domain.PersonalInfo{
			FullName:  strings.TrimSpace(form.FullName),
			TaxID:     form.TaxID,
			BirthDate: form.BirthDate,
			Email:     strings.TrimSpace(form.Email),
			Phone:     strings.TrimSpace(form.Phone),
			Address:   strings.TrimSpace(form.Address),
		},
		Banking: domain.BankingInfo{
			BankName:      strings.TrimSpace(form.BankName),
			AccountType:   form.AccountType,
			AccountNumber: form.AccountNumber,
			RoutingNumber: form.RoutingNumber,
		},
		PaymentMethod: form.PaymentMethod,
		Plan:          plan,
		Documents:     form.Attachments.Items(),
	})
	if err != nil {
		err = s.session.Guard(ctx, err)
		s.log.Error().Err(err).Str("uid", owner.UID).Msg("submission failed")
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, cache.UserListKey(owner.UID)); err != nil {
		s.log.Warn().Err(err).Msg("invalidate request list")
	}
	s.log.Info().
		Str("uid", owner.UID).
		Str("confirmation", receipt.ConfirmationNumber).
		Int("documents", form.Attachments.Len()).
		Msg("filing request submitted")
	return receipt, nil
}
