package application

import (
	"context"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*adminOverrideRepo)(nil)

// adminOverrideRepo grants admin rights to chat IDs listed in config on top
// of whatever persistence says.
type adminOverrideRepo struct {
	repository.AccountRepository
	admins map[int64]struct{}
}

func WithAdminOverride(inner repository.AccountRepository, adminIDs []int64) repository.AccountRepository {
	if len(adminIDs) == 0 {
		return inner
	}
	set := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		set[id] = struct{}{}
	}
	return &adminOverrideRepo{AccountRepository: inner, admins: set}
}

func (r *adminOverrideRepo) FindByChatID(ctx context.Context, chatID int64) (*model.Account, error) {
	acc, err := r.AccountRepository.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, ok := r.admins[chatID]; ok {
		acc.IsAdmin = true
	}
	return acc, nil
}

func (r *adminOverrideRepo) Create(ctx context.Context, chatID int64, info model.RegistrationInfo) (*model.Account, error) {
	acc, err := r.AccountRepository.Create(ctx, chatID, info)
	if err != nil {
		return nil, err
	}
	if _, ok := r.admins[chatID]; ok {
		acc.IsAdmin = true
	}
	return acc, nil
}
