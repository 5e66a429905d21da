package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/hubspot"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/security"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/validators"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrMissingToken    = errors.New("no verification token provided")
	ErrInvalidToken    = errors.New("verification token is invalid")
	ErrTokenExpired    = errors.New("verification token has expired")
	ErrRecordNotFound  = errors.New("analysis not found")
	ErrAlreadyVerified = errors.New("email address is already verified")
	ErrResendThrottled = errors.New("too many resend requests, please try again later")
)

// TokenLifetime is fixed, a token is never extended
const TokenLifetime = 24 * time.Hour

const (
	enqueueTimeout   = 2 * time.Second
	resendWindow     = 24 * time.Hour
	maxReportLength  = 512 << 10
	defaultCRMTimout = 5 * time.Second
)

// ValidationError marks bad caller input. Nothing was written when it is
// returned
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// VerificationStore is implemented by db.VerificationStore. Lookups that find
// nothing return gorm.ErrRecordNotFound
type VerificationStore interface {
	Create(ctx context.Context, r *model.VerificationRecord) error
	FindByToken(ctx context.Context, token string) (*model.VerificationRecord, error)
	FindByID(ctx context.Context, id string) (*model.VerificationRecord, error)
	MarkVerified(ctx context.Context, id string, at time.Time) (bool, error)
	RecordResend(ctx context.Context, recordID string, at time.Time, allow func(last *model.ResendRequest) error) (*model.ResendRequest, error)
}

// CRM is implemented by *hubspot.Client
type CRM interface {
	UpsertContact(ctx context.Context, c hubspot.Contact) (string, error)
	SetEmailVerified(ctx context.Context, contactID string, verified bool) error
}

type VerifierConfig struct {
	ResendCooldown   time.Duration
	ResendDailyLimit int
	CRMTimeout       time.Duration
}

// Verifier issues and redeems the email verification tokens that guard
// analysis reports
type Verifier struct {
	store VerificationStore
	crm   CRM
	queue TaskQueue
	cfg   VerifierConfig
	now   func() time.Time
}

// NewVerifier wires the service. crm and queue may be nil, the matching
// best-effort steps are skipped then
func NewVerifier(store VerificationStore, crm CRM, queue TaskQueue, cfg VerifierConfig) *Verifier {
	if cfg.CRMTimeout <= 0 {
		cfg.CRMTimeout = defaultCRMTimout
	}

	if cfg.ResendDailyLimit <= 0 {
		cfg.ResendDailyLimit = 5
	}

	return &Verifier{
		store: store,
		crm:   crm,
		queue: queue,
		cfg:   cfg,
		now:   time.Now,
	}
}

type IssueParams struct {
	URL              string
	Report           string
	Screenshot       string
	Email            string
	FirstName        string
	HubspotContactID *string
}

// Issue creates and persists an unverified record whose token expires
// TokenLifetime from now
func (v *Verifier) Issue(ctx context.Context, p IssueParams) (*model.VerificationRecord, error) {
	rec, err := security.MakeVerificationRecord(&security.VerificationRecordOpts{
		URL:              p.URL,
		Report:           p.Report,
		Screenshot:       p.Screenshot,
		Email:            p.Email,
		FirstName:        p.FirstName,
		HubspotContactID: p.HubspotContactID,
		CreatedAt:        v.now(),
		TTL:              TokenLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make verification record, %w", err)
	}

	if err := v.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store verification record, %w", err)
	}

	return rec, nil
}

type Submission struct {
	URL        string
	Report     string
	Screenshot string
	Email      string
	FirstName  string
}

func (s *Submission) validate() error {
	s.URL = strings.TrimSpace(s.URL)
	s.Email = strings.TrimSpace(s.Email)
	s.FirstName = strings.TrimSpace(s.FirstName)

	if err := validators.URLValidator(s.URL); err != nil {
		return &ValidationError{Field: "url", Err: err}
	}

	if err := validators.EmailValidator(s.Email); err != nil {
		return &ValidationError{Field: "email", Err: err}
	}

	if strings.TrimSpace(s.Report) == "" {
		return &ValidationError{Field: "report", Err: errors.New("no report provided")}
	}

	if len(s.Report) > maxReportLength {
		return &ValidationError{Field: "report", Err: errors.New("report is too long")}
	}

	if s.Screenshot != "" {
		if err := validators.URLValidator(s.Screenshot); err != nil {
			return &ValidationError{Field: "screenshot", Err: err}
		}
	}

	return nil
}

// Submit is the full submission pathway: the contact is synced to the CRM
// (best-effort, its ID is kept when that works), the record is issued and
// the verification mail is queued
func (v *Verifier) Submit(ctx context.Context, s Submission) (*model.VerificationRecord, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	contactID := v.syncContact(ctx, s)

	rec, err := v.Issue(ctx, IssueParams{
		URL:              s.URL,
		Report:           s.Report,
		Screenshot:       s.Screenshot,
		Email:            s.Email,
		FirstName:        s.FirstName,
		HubspotContactID: contactID,
	})
	if err != nil {
		return nil, err
	}

	v.enqueue(ctx, TaskVerificationMail, verificationMailPayload{RecordID: rec.ID})

	return rec, nil
}

func (v *Verifier) syncContact(ctx context.Context, s Submission) *string {
	if v.crm == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.CRMTimeout)
	defer cancel()

	id, err := v.crm.UpsertContact(ctx, hubspot.Contact{
		Email:     s.Email,
		FirstName: s.FirstName,
		Website:   s.URL,
	})
	if err != nil {
		if errors.Is(err, hubspot.ErrDisabled) {
			return nil
		}

		zap.L().Warn("Failed to sync contact to CRM, continuing without it", zap.Error(err))
		return nil
	}

	return &id
}

// Redemption is what a valid token unlocks
type Redemption struct {
	Report     string `json:"report"`
	Screenshot string `json:"screenshot"`
	URL        string `json:"url"`
}

// Redeem confirms the email address behind token and returns the report.
// Expiry is checked on every call, also for records that are verified
// already. Redeeming a verified record again writes nothing
func (v *Verifier) Redeem(ctx context.Context, token string) (*Redemption, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	rec, err := v.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("failed to look up verification record, %w", err)
	}

	now := v.now()

	if rec.Expired(now) {
		return nil, ErrTokenExpired
	}

	if !rec.EmailVerified {
		flipped, err := v.store.MarkVerified(ctx, rec.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to mark record verified, %w", err)
		}

		if flipped {
			zap.L().Debug("Email verified", zap.String("record_id", rec.ID))
		}
	}

	// Only after the flip is committed, a CRM failure must not undo it
	if rec.HubspotContactID != nil && *rec.HubspotContactID != "" {
		v.enqueue(ctx, TaskCRMEmailVerified, crmVerifiedPayload{
			ContactID: *rec.HubspotContactID,
			RecordID:  rec.ID,
		})
	}

	return &Redemption{
		Report:     rec.Report,
		Screenshot: rec.Screenshot,
		URL:        rec.URL,
	}, nil
}

// Resend queues the verification mail of a record again. The token and its
// expiry stay the same
func (v *Verifier) Resend(ctx context.Context, recordID, email string) error {
	if strings.TrimSpace(recordID) == "" {
		return &ValidationError{Field: "id", Err: errors.New("no analysis ID provided")}
	}

	if err := validators.EmailValidator(strings.TrimSpace(email)); err != nil {
		return &ValidationError{Field: "email", Err: err}
	}

	rec, err := v.store.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}

		return fmt.Errorf("failed to look up verification record, %w", err)
	}

	// Same answer as for unknown IDs so the endpoint can't be used to discover
	// which address belongs to an analysis
	if !strings.EqualFold(strings.TrimSpace(email), rec.Email) {
		return ErrRecordNotFound
	}

	now := v.now()

	if rec.Expired(now) {
		return ErrTokenExpired
	}

	if rec.EmailVerified {
		return ErrAlreadyVerified
	}

	if now.Sub(rec.CreatedAt) < v.cfg.ResendCooldown {
		return ErrResendThrottled
	}

	_, err = v.store.RecordResend(ctx, rec.ID, now, func(last *model.ResendRequest) error {
		if last == nil {
			return nil
		}

		if now.Sub(last.LastResend) < v.cfg.ResendCooldown {
			return ErrResendThrottled
		}

		if now.Sub(last.WindowStart) < resendWindow && last.Count >= v.cfg.ResendDailyLimit {
			return ErrResendThrottled
		}

		return nil
	})
	if errors.Is(err, ErrResendThrottled) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to record resend request, %w", err)
	}

	v.enqueue(ctx, TaskVerificationMail, verificationMailPayload{RecordID: rec.ID})

	return nil
}

// enqueue hands a best-effort task to the queue. Failing to do so is logged
// and otherwise ignored
func (v *Verifier) enqueue(ctx context.Context, taskType string, payload any) {
	enqueue(ctx, v.queue, taskType, payload)
}

func enqueue(ctx context.Context, q TaskQueue, taskType string, payload any) {
	if q == nil {
		return
	}

	t, err := NewTask(taskType, payload)
	if err != nil {
		zap.L().Error("Failed to create task", zap.String("task", taskType), zap.Error(err))
		return
	}

	// The request context is cancelled as soon as the response is written
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	if err := q.Enqueue(ctx, t); err != nil {
		zap.L().Error("Failed to enqueue task", zap.String("task", taskType), zap.Error(err))
	}
}
