package application

import (
	"context"
	"sync"
	"testing"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	petDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/pet"
	userDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/user"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	topic string
	event kafka.CloudEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.event.Type
	}
	return out
}

func seedPet(t *testing.T, store *memory.Store, tag string, priceCents int64) *petDomain.Pet {
	t.Helper()
	p, err := petDomain.NewPet(tag, petDomain.KindDog, 3, priceCents, petDomain.GenderMale)
	require.NoError(t, err)
	require.NoError(t, store.Pets().Save(context.Background(), p))
	return p
}

func seedUser(t *testing.T, store *memory.Store, username string) *userDomain.User {
	t.Helper()
	u, err := userDomain.NewUser(username, auth.RoleCustomer, username+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, store.Users().Save(context.Background(), u))
	return u
}

func isAdopted(t *testing.T, store *memory.Store, petID uuid.UUID) bool {
	t.Helper()
	p, err := store.Pets().FindByID(context.Background(), petID)
	require.NoError(t, err)
	return p.IsAdopted()
}
