package handlers

import "context"

type stubMailer struct {
	sent []string
}

func (m *stubMailer) Send(_ context.Context, recipient, _, _, _ string) error {
	m.sent = append(m.sent, recipient)
	return nil
}
