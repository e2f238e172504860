package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotAdmin          = errors.New("administrator rights required")
	ErrInvalidCode       = errors.New("promo code is not valid")
	ErrCodeExhausted     = errors.New("promo code usage limit reached")
	ErrTarifExpired      = errors.New("tariff has expired")
	ErrDailyLimitReached = errors.New("daily usage limit reached")
	ErrTotalLimitReached = errors.New("total usage limit reached")
	ErrNoAccount         = errors.New("account is not registered")
	ErrEmptyMessage      = errors.New("message text is empty")
)
