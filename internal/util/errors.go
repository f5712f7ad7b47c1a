package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrInvalidToken     = errors.New("invalid token")
)
