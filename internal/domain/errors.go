package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrTemplatePaused    = errors.New("template paused")
	ErrNoPrice           = errors.New("no price available")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
