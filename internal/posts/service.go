package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/favum/favum/internal/authz"
	"github.com/favum/favum/internal/platform/httpx"
)

// Service wraps post business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get fetches a single post.
func (s *Service) Get(ctx context.Context, id int64) (*Post, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new post authored by authorID.
func (s *Service) Create(ctx context.Context, authorID int64, title, body string) (*Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, authorID, title, strings.TrimSpace(body))
}

// Update rewrites an existing post.
func (s *Service) Update(ctx context.Context, id int64, title, body string) (*Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", httpx.ErrValidation)
	}
	return s.repo.Update(ctx, id, title, strings.TrimSpace(body))
}

// Delete removes a post.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// List returns a page of posts with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Post, Pagination, error) {
	items, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, Pagination{}, err
	}
	return items, NewPagination(page, perPage, total), nil
}

// OwnerLookup adapts the repository to the signature the ownership guard
// consumes, translating the repository's not-found into the sentinel the
// guard distinguishes from lookup failure.
func (s *Service) OwnerLookup() authz.OwnerLookup {
	return func(ctx context.Context, postID int64) (int64, error) {
		ownerID, err := s.repo.OwnerOf(ctx, postID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return 0, fmt.Errorf("%w: post %d", authz.ErrOwnerNotFound, postID)
			}
			return 0, err
		}
		return ownerID, nil
	}
}
