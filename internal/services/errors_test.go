package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	vErr := NewValidationError("content", "不能为空")
	assert.True(t, IsValidation(vErr))
	assert.False(t, IsNotFound(vErr))
	assert.Contains(t, vErr.Error(), "content")

	nErr := NewNotFoundError("评论不存在")
	assert.True(t, IsNotFound(nErr))
	assert.False(t, IsPermission(nErr))

	pErr := NewPermissionError("只能删除自己的评论")
	assert.True(t, IsPermission(pErr))

	cause := errors.New("connection refused")
	sErr := NewStorageError(cause)
	assert.True(t, IsStorage(sErr))
	assert.ErrorIs(t, sErr, cause, "存储错误应保留底层原因")
}

func TestErrorKindsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("处理评论失败: %w", NewNotFoundError("评论不存在"))
	assert.True(t, IsNotFound(wrapped), "errors.As 应穿透包装")
}

func TestPlainErrorMatchesNoKind(t *testing.T) {
	err := errors.New("something else")
	assert.False(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsPermission(err))
	assert.False(t, IsStorage(err))
}
