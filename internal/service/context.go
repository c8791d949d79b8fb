package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// CreateContext creates a named context. Creating a name that already exists
// returns the existing context and created=false.
func (s *Service) CreateContext(ctx context.Context, req domain.CreateContextRequest) (wc *domain.WorkContext, created bool, err error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: context name is required", domain.ErrInvalidArgument)
	}

	existing, err := s.store.GetContextByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get context: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	wc = &domain.WorkContext{
		ContextID:   "ctx_" + uuid.New().String()[:8],
		Name:        name,
		Description: req.Description,
		CreatedAt:   now,
		LastActive:  now,
	}
	if err := s.store.PutContext(ctx, wc); err != nil {
		// lost a race with a concurrent create of the same name
		if again, gerr := s.store.GetContextByName(ctx, name); gerr == nil && again != nil {
			return again, false, nil
		}
		return nil, false, fmt.Errorf("failed to create context: %w", err)
	}
	s.logger.Info("context created", "context_id", wc.ContextID, "name", wc.Name)
	return wc, true, nil
}

// GetContext returns a context or domain.ErrNotFound.
func (s *Service) GetContext(ctx context.Context, contextID string) (*domain.WorkContext, error) {
	wc, err := s.store.GetContext(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	if wc == nil {
		return nil, fmt.Errorf("%w: context %s", domain.ErrNotFound, contextID)
	}
	return wc, nil
}

// ListContexts returns every context, most recently active first.
func (s *Service) ListContexts(ctx context.Context) ([]domain.WorkContext, error) {
	contexts, err := s.store.ListContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	return contexts, nil
}

// touchContext marks a context active when a session starts under it.
func (s *Service) touchContext(ctx context.Context, wc *domain.WorkContext) {
	touched := *wc
	touched.LastActive = time.Now().UTC()
	if err := s.store.PutContext(ctx, &touched); err != nil {
		s.logger.Warn("failed to update context activity", "context_id", wc.ContextID, "error", err)
	}
}
