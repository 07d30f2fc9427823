package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/kvetinski/bank/internal/domain"
)

// Repository is the persistence port. FindByID, DeleteByID and Save of an
// existing id report a miss with domain.ErrAccountNotFound.
type Repository interface {
	Save(ctx context.Context, acc domain.Account) (domain.Account, error)
	FindByID(ctx context.Context, id int64) (domain.Account, error)
	FindAll(ctx context.Context) ([]domain.Account, error)
	DeleteByID(ctx context.Context, id int64) error
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, acc domain.Account) (domain.Account, error) {
	if err := Validate(acc); err != nil {
		return domain.Account{}, err
	}

	acc.ID = 0
	created, err := s.repo.Save(ctx, acc)
	if err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	return created, nil
}

func (s *Service) GetAll(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}

	return accounts, nil
}

// GetByID reports found=false when no account has the given id.
func (s *Service) GetByID(ctx context.Context, id int64) (domain.Account, bool, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("get account: %w", err)
	}

	return acc, true, nil
}

// Update validates the incoming values before looking the account up, so an
// invalid payload is rejected even for an unknown id. A miss is reported as
// found=false rather than domain.ErrAccountNotFound.
func (s *Service) Update(ctx context.Context, id int64, acc domain.Account) (domain.Account, bool, error) {
	if err := Validate(acc); err != nil {
		return domain.Account{}, false, err
	}

	existing, found, err := s.GetByID(ctx, id)
	if err != nil || !found {
		return domain.Account{}, found, err
	}

	updated, err := s.repo.Save(ctx, existing.Patch(acc))
	if errors.Is(err, domain.ErrAccountNotFound) {
		// deleted between lookup and save
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("update account: %w", err)
	}

	return updated, true, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, found, err := s.GetByID(ctx, id); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("delete account: %w", err)
	}

	return nil
}
