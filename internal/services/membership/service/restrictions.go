package service

import (
	"context"
	"errors"
	"strings"

	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"go.opentelemetry.io/otel/attribute"
)

// SetContentRestriction replaces the access rules of one content item.
func (s *Service) SetContentRestriction(ctx context.Context, restriction domain.ContentRestriction) (_ domain.ContentRestriction, err error) {
	ctx, span := startSpan(ctx, "set_content_restriction", attribute.String(traceAttrContentID, restriction.ContentID))
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return domain.ContentRestriction{}, err
	}

	restriction, err = domain.NormalizeContentRestriction(restriction)
	if err != nil {
		return domain.ContentRestriction{}, err
	}
	if restriction.ContentID == "" {
		return domain.ContentRestriction{}, invalidArgument("content id is required")
	}
	if err := s.store.PutContentRestriction(ctx, restriction); err != nil {
		return domain.ContentRestriction{}, storeError(err, "content restriction")
	}
	return restriction, nil
}

// GetContentRestriction returns the rules of one content item. Content
// without stored rules is unrestricted.
func (s *Service) GetContentRestriction(ctx context.Context, contentID string) (domain.ContentRestriction, error) {
	if err := s.ready(); err != nil {
		return domain.ContentRestriction{}, err
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return domain.ContentRestriction{}, invalidArgument("content id is required")
	}
	restriction, err := s.store.GetContentRestriction(ctx, contentID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.ContentRestriction{ContentID: contentID}, nil
	}
	if err != nil {
		return domain.ContentRestriction{}, storeError(err, "content restriction")
	}
	return restriction, nil
}

// DeleteContentRestriction removes the rules of one content item.
func (s *Service) DeleteContentRestriction(ctx context.Context, contentID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return invalidArgument("content id is required")
	}
	err := s.store.DeleteContentRestriction(ctx, contentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storeError(err, "content restriction")
	}
	return nil
}

// SetTermRestriction replaces the rules inherited from one taxonomy term.
// An empty restriction clears the term.
func (s *Service) SetTermRestriction(ctx context.Context, restriction domain.TermRestriction) (domain.TermRestriction, error) {
	if err := s.ready(); err != nil {
		return domain.TermRestriction{}, err
	}
	restriction, err := domain.NormalizeTermRestriction(restriction)
	if err != nil {
		return domain.TermRestriction{}, err
	}
	if restriction.TermID == "" {
		return domain.TermRestriction{}, invalidArgument("term id is required")
	}
	if err := s.store.PutTermRestriction(ctx, restriction); err != nil {
		return domain.TermRestriction{}, storeError(err, "term restriction")
	}
	return restriction, nil
}
