// Package service implements lead intake, client lookup and the lead
// lifecycle.
package service

import (
	"context"
	"fmt"

	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/repository"
	"fantopark_backend/platform/phone"
)

// Clients groups leads by normalized phone.
type Clients struct {
	repo repository.LeadReader
}

func NewClients(repo repository.LeadReader) *Clients {
	return &Clients{repo: repo}
}

// FindClientByPhone returns the client for raw, or nil when the phone is not
// matchable or no lead carries it. Malformed phones are not an error.
func (s *Clients) FindClientByPhone(ctx context.Context, raw string) (*domain.Client, error) {
	if !phone.IsMatchable(raw) {
		return nil, nil
	}
	clientID := phone.ClientID(raw)

	leads, err := s.repo.ListByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list leads for client %s: %w", clientID, err)
	}
	return domain.BuildClient(clientID, leads), nil
}
