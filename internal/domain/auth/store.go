package auth

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
)

// UserStore keeps users as "user" documents in the shared document backend
type UserStore struct {
	repo *document.Repository
}

// NewUserStore creates a store on a repository of DocumentType
func NewUserStore(repo *document.Repository) (*UserStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository cannot be nil")
	}
	if repo.Type() != DocumentType {
		return nil, fmt.Errorf("user store needs a %q repository, got %q", DocumentType, repo.Type())
	}
	return &UserStore{repo: repo}, nil
}

// FindByID returns the user stored under id
func (s *UserStore) FindByID(ctx context.Context, id string) (*User, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return UserFromDocument(doc)
}

// FindByUsername scans the user documents for username. It returns (nil, nil)
// when nobody has that name.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	docs, err := s.repo.Find(ctx)
	if err != nil {
		return nil, err
	}

	doc, ok := lo.Find(docs, func(d *document.Document) bool {
		name, _ := d.Fields["username"].(string)
		return name == username
	})
	if !ok {
		return nil, nil
	}
	return UserFromDocument(doc)
}

// Create inserts u after checking the username is free
func (s *UserStore) Create(ctx context.Context, u *User) (*User, error) {
	existing, err := s.FindByUsername(ctx, u.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.ErrAlreadyExists("username")
	}

	doc, err := s.repo.Insert(ctx, u.Fields(), u.ID)
	if err != nil {
		return nil, err
	}
	return UserFromDocument(doc)
}
