package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sofatutor/portfolio-api/internal/database"
	"github.com/sofatutor/portfolio-api/internal/logging"
	"github.com/sofatutor/portfolio-api/internal/obfuscate"
	"github.com/sofatutor/portfolio-api/internal/validation"
)

// SubmissionStore persists contact submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s database.ContactSubmission) (database.ContactSubmission, error)
}

// ContactInput is an inbound contact form.
type ContactInput struct {
	Form     validation.ContactForm
	ClientIP string
}

// SubmissionResult is returned to the submitter.
type SubmissionResult struct {
	SubmissionID string `json:"submissionId"`
	EmailSent    bool   `json:"emailSent"`
}

// ContactService stores a submission and then notifies the owner.
type ContactService struct {
	store    SubmissionStore
	notifier *Notifier
	logger   *zap.Logger
}

func NewContactService(store SubmissionStore, notifier *Notifier, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{store: store, notifier: notifier, logger: logger}
}

// Submit validates, stores and notifies. A failed notification is reported
// through EmailSent; only validation and storage errors are returned.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (SubmissionResult, error) {
	if err := validation.ValidateContactForm(in.Form).Err(); err != nil {
		return SubmissionResult{}, err
	}
	form := validation.SanitizeContactForm(in.Form)
	if err := validation.ValidateContactForm(form).Err(); err != nil {
		return SubmissionResult{}, err
	}

	ctx = context.WithoutCancel(ctx)
	sub, err := s.store.CreateSubmission(ctx, database.ContactSubmission{
		Name:      form.Name,
		Email:     form.Email,
		Message:   form.Message,
		IPAddress: in.ClientIP,
	})
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("store submission: %w", err)
	}
	logging.WithContext(ctx, s.logger).Info("contact submission stored",
		zap.String("submission_id", sub.ID),
		zap.String("email", obfuscate.Email(sub.Email)))

	sent := false
	if s.notifier != nil {
		sent = s.notifier.Notify(ctx, sub)
	}
	return SubmissionResult{SubmissionID: sub.ID, EmailSent: sent}, nil
}
