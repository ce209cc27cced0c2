package emails

import (
	"context"
	"fmt"
	"html"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Service struct {
	repo         *Repository
	smtp         SMTPConfig
	from         string
	interfaceURL string
}

func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{
		repo:         repo,
		smtp:         SMTPFromConfig(cfg),
		from:         cfg.MailFrom,
		interfaceURL: cfg.InterfaceURL,
	}
}

// Send records the message and delivers it in the background. The
// caller only sees persistence failures; delivery failures land on the
// stored record.
func (s *Service) Send(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return apperror.BadRequest("recipient required")
	}

	if email.From == "" {
		email.From = s.from
	}
	email.Status = EmailQueued
	if err := s.repo.Create(ctx, email); err != nil {
		return err
	}

	go s.process(email)
	return nil
}

// SendProjectInvite mails a collaboration invitation carrying accept and
// decline links bound to the invitee's single-use code.
func (s *Service) SendProjectInvite(ctx context.Context, to, projectLabel, inviteCode string, projectID primitive.ObjectID) error {
	acceptURL := fmt.Sprintf("%s/invite/accept?code=%s&project=%s", s.interfaceURL, inviteCode, projectID.Hex())
	declineURL := fmt.Sprintf("%s/invite/decline?code=%s&project=%s", s.interfaceURL, inviteCode, projectID.Hex())

	body := fmt.Sprintf(`<p>You have been invited to collaborate on the transcription project <b>%s</b>.</p>
<p><a href="%s">Accept the invitation</a> or <a href="%s">decline it</a>.</p>
<p>If you did not expect this email you can safely ignore it.</p>`,
		html.EscapeString(projectLabel), acceptURL, declineURL)

	return s.Send(ctx, &Email{
		To:         []string{to},
		Subject:    fmt.Sprintf("Invitation to transcribe: %s", projectLabel),
		HtmlBody:   body,
		EntityType: "project",
		EntityID:   projectID,
	})
}

func (s *Service) process(email *Email) {
	err := SendSMTP(s.smtp, email)
	if err != nil {
		_ = s.repo.UpdateStatus(
			context.Background(),
			email.ID,
			EmailFailed,
			err.Error(),
		)
		return
	}

	_ = s.repo.UpdateStatus(
		context.Background(),
		email.ID,
		EmailSent,
		"",
	)
}
