package bot

import (
	"context"
	"sync"
)

// MockMessenger records deliveries for tests and returns scripted errors.
type MockMessenger struct {
	mu      sync.Mutex
	sent    []MockDelivery
	granted []string

	SendErr  error
	GrantErr error
}

type MockDelivery struct {
	UserID     string
	ContentRef string
}

func (m *MockMessenger) Send(_ context.Context, userID, contentRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, MockDelivery{UserID: userID, ContentRef: contentRef})
	return nil
}

func (m *MockMessenger) GrantAccess(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GrantErr != nil {
		return m.GrantErr
	}
	m.granted = append(m.granted, userID)
	return nil
}

func (m *MockMessenger) Sent() []MockDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockDelivery{}, m.sent...)
}

func (m *MockMessenger) Granted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.granted...)
}
