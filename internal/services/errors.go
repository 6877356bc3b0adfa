package services

import (
	"errors"
	"fmt"
)

// ErrorKind 服务层错误分类，handler 据此映射 HTTP 状态码
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindNotFound   ErrorKind = "not_found"
	ErrKindPermission ErrorKind = "permission"
	ErrKindStorage    ErrorKind = "storage"
)

// Error carries the kind plus the offending field (for validation errors),
// enough for the caller to render a user-facing message.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: ErrKindValidation, Field: field, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrKindNotFound, Message: message}
}

func NewPermissionError(message string) *Error {
	return &Error{Kind: ErrKindPermission, Message: message}
}

// NewStorageError 包装底层存储错误，不在服务层重试
func NewStorageError(err error) *Error {
	return &Error{Kind: ErrKindStorage, Message: "storage failure", Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsValidation(err error) bool { return isKind(err, ErrKindValidation) }
func IsNotFound(err error) bool   { return isKind(err, ErrKindNotFound) }
func IsPermission(err error) bool { return isKind(err, ErrKindPermission) }
func IsStorage(err error) bool    { return isKind(err, ErrKindStorage) }
