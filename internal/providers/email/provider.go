package email

import "context"

// InviteData fills the member invitation mail.
type InviteData struct {
	OrgName      string
	InviterEmail string
	Role         string
	AcceptURL    string
}

type Provider interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
	SendInvite(ctx context.Context, to string, data InviteData) error
}

// NoOpProvider is used when no SMTP host is configured.
type NoOpProvider struct{}

func (NoOpProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return nil
}

func (NoOpProvider) SendInvite(ctx context.Context, to string, data InviteData) error {
	return nil
}
