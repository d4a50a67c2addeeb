package common

// EmailSender delivers a rendered HTML message to one recipient. The worker
// holds one implementation; everything else depends on the interface.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is one captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail collects sent mail for assertions instead of delivering it.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards everything. Used when no SMTP credentials are
// configured so the notification worker still drains its queue.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }
