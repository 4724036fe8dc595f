package storagemock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"towing-contact/api/pkg/clients/email"
	"towing-contact/api/services/contact"
	"towing-contact/api/services/storage"
)

// StorageMock lets handler tests override individual session operations.
// Unset hooks fall back to a fresh session backed by a stub email client.
type StorageMock struct {
	CreateSessionMock func(ctx context.Context) (*storage.Session, error)
	GetSessionMock    func(ctx context.Context, id uuid.UUID) (*storage.Session, error)
	DeleteSessionMock func(ctx context.Context, id uuid.UUID) error
}

func (m *StorageMock) CreateSession(ctx context.Context) (*storage.Session, error) {
	if m != nil && m.CreateSessionMock != nil {
		return m.CreateSessionMock(ctx)
	}
	return NewSession(uuid.New()), nil
}

func (m *StorageMock) GetSession(ctx context.Context, id uuid.UUID) (*storage.Session, error) {
	if m != nil && m.GetSessionMock != nil {
		return m.GetSessionMock(ctx, id)
	}
	return NewSession(id), nil
}

func (m *StorageMock) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if m != nil && m.DeleteSessionMock != nil {
		return m.DeleteSessionMock(ctx, id)
	}
	return nil
}

// NewSession returns a session whose form relays to a stub client.
func NewSession(id uuid.UUID) *storage.Session {
	form, _ := contact.NewForm(email.NewStubClient(), contact.RelayConfig{
		ServiceID:  "service_mock",
		TemplateID: "template_mock",
		UserID:     "user_mock",
	})
	now := time.Now()
	return &storage.Session{ID: id, Form: form, CreatedAt: now, LastSeen: now}
}

var _ storage.Storage = (*StorageMock)(nil)
