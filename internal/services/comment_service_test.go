package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"bookden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCommentStore 测试用内存实现，行为与 GormCommentStore 对齐
type memoryCommentStore struct {
	mu       sync.Mutex
	comments map[uint]*models.Comment
	books    map[uint]bool
	nextID   uint
	seq      int
	base     time.Time
}

func newMemoryCommentStore(bookIDs ...uint) *memoryCommentStore {
	books := make(map[uint]bool)
	for _, id := range bookIDs {
		books[id] = true
	}
	return &memoryCommentStore{
		comments: make(map[uint]*models.Comment),
		books:    books,
		base:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memoryCommentStore) Insert(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.seq++
	comment.ID = s.nextID
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.base.Add(time.Duration(s.seq) * time.Second)
	}
	clone := *comment
	s.comments[comment.ID] = &clone
	return nil
}

func (s *memoryCommentStore) Get(_ context.Context, id uint) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (s *memoryCommentStore) ListRoots(_ context.Context, bookID uint, page, pageSize int) ([]models.Comment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var roots []models.Comment
	for _, c := range s.comments {
		if c.BookID == bookID && c.ParentID == nil {
			roots = append(roots, *c)
		}
	}
	// 最新优先
	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.After(roots[j].CreatedAt)
		}
		return roots[i].ID > roots[j].ID
	})
	total := int64(len(roots))
	return paginate(roots, page, pageSize), total, nil
}

func (s *memoryCommentStore) ListChildren(_ context.Context, parentID uint, page, pageSize int) ([]models.Comment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []models.Comment
	for _, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == parentID {
			children = append(children, *c)
		}
	}
	// 时间正序
	sort.Slice(children, func(i, j int) bool {
		if !children[i].CreatedAt.Equal(children[j].CreatedAt) {
			return children[i].CreatedAt.Before(children[j].CreatedAt)
		}
		return children[i].ID < children[j].ID
	})
	total := int64(len(children))
	return paginate(children, page, pageSize), total, nil
}

func paginate(items []models.Comment, page, pageSize int) []models.Comment {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *memoryCommentStore) Update(_ context.Context, id uint, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return fmt.Errorf("comment %d not found", id)
	}
	if v, ok := fields["content"]; ok {
		c.Content = v.(string)
	}
	if v, ok := fields["star"]; ok {
		c.Star = v.(*int)
	}
	if v, ok := fields["updated_at"]; ok {
		c.UpdatedAt = v.(*time.Time)
	}
	return nil
}

func (s *memoryCommentStore) subtreeIDs(id uint) []uint {
	ids := []uint{id}
	frontier := []uint{id}
	for len(frontier) > 0 {
		var next []uint
		for _, c := range s.comments {
			if c.ParentID == nil {
				continue
			}
			for _, f := range frontier {
				if *c.ParentID == f {
					next = append(next, c.ID)
				}
			}
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids
}

func (s *memoryCommentStore) DeleteCascade(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, victim := range s.subtreeIDs(id) {
		delete(s.comments, victim)
	}
	return nil
}

func (s *memoryCommentStore) CountDescendants(_ context.Context, id uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.subtreeIDs(id)) - 1), nil
}

func (s *memoryCommentStore) CountRoots(_ context.Context, bookID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.comments {
		if c.BookID == bookID && c.ParentID == nil {
			n++
		}
	}
	return n, nil
}

func (s *memoryCommentStore) CountChildren(_ context.Context, id uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (s *memoryCommentStore) CountByBook(_ context.Context, bookID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.comments {
		if c.BookID == bookID {
			n++
		}
	}
	return n, nil
}

func (s *memoryCommentStore) BookExists(_ context.Context, bookID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[bookID], nil
}

// stubUserDirectory 固定用户表
type stubUserDirectory struct {
	names map[uint]string
	roles map[uint]string
}

func newStubUserDirectory() *stubUserDirectory {
	return &stubUserDirectory{
		names: map[uint]string{1: "小明", 2: "小红", 9: "馆长"},
		roles: map[uint]string{1: "user", 2: "user", 9: "admin"},
	}
}

func (d *stubUserDirectory) DisplayName(_ context.Context, userID uint) (string, error) {
	if name, ok := d.names[userID]; ok {
		return name, nil
	}
	return "已注销用户", nil
}

func (d *stubUserDirectory) Role(_ context.Context, userID uint) (string, error) {
	if role, ok := d.roles[userID]; ok {
		return role, nil
	}
	return "user", nil
}

func newTestService(bookIDs ...uint) (*CommentService, *memoryCommentStore) {
	store := newMemoryCommentStore(bookIDs...)
	return NewCommentService(store, newStubUserDirectory()), store
}

func starOf(n int) *int { return &n }

func TestCreateRootComment(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	v, err := svc.CreateRootComment(ctx, 1, 1, "  值得一读  ", starOf(5))
	require.NoError(t, err)
	assert.Equal(t, "值得一读", v.Content, "内容应去除首尾空白")
	assert.Equal(t, "小明", v.AuthorName)
	require.NotNil(t, v.Star)
	assert.Equal(t, 5, *v.Star)
	assert.True(t, v.IsRoot())
	assert.Equal(t, 0, v.Level)
	assert.Len(t, v.Cid, 8)
}

func TestCreateRootCommentValidation(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	_, err := svc.CreateRootComment(ctx, 1, 1, "   ", nil)
	assert.True(t, IsValidation(err), "空内容应返回校验错误")

	_, err = svc.CreateRootComment(ctx, 1, 1, strings.Repeat("书", MaxCommentLen+1), nil)
	assert.True(t, IsValidation(err), "超长内容应返回校验错误")

	// 恰好 500 字合法
	_, err = svc.CreateRootComment(ctx, 1, 1, strings.Repeat("书", MaxCommentLen), nil)
	assert.NoError(t, err)

	_, err = svc.CreateRootComment(ctx, 1, 1, "好书", starOf(0))
	assert.True(t, IsValidation(err), "星级 0 非法")

	_, err = svc.CreateRootComment(ctx, 1, 1, "好书", starOf(6))
	assert.True(t, IsValidation(err), "星级 6 非法")

	_, err = svc.CreateRootComment(ctx, 404, 1, "好书", nil)
	assert.True(t, IsNotFound(err), "图书不存在应返回 NotFound")
}

func TestCreateReply(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "开坑", starOf(4))
	require.NoError(t, err)

	reply, err := svc.CreateReply(ctx, 1, root.ID, 2, "同感", nil)
	require.NoError(t, err)
	assert.Equal(t, root.BookID, reply.BookID, "回复继承父评论所属图书")
	assert.Equal(t, 1, reply.Level)
	assert.Nil(t, reply.Star)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	// 二级回复层级递增
	reply2, err := svc.CreateReply(ctx, 0, reply.ID, 1, "握手", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reply2.Level)
}

func TestCreateReplyRejectsStar(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "开坑", nil)
	require.NoError(t, err)

	_, err = svc.CreateReply(ctx, 1, root.ID, 2, "偷偷评分", starOf(3))
	assert.True(t, IsValidation(err), "回复携带星级应被拒绝")
}

func TestCreateReplyParentChecks(t *testing.T) {
	svc, _ := newTestService(1, 2)
	ctx := context.Background()

	_, err := svc.CreateReply(ctx, 1, 999, 2, "回复幽灵", nil)
	assert.True(t, IsNotFound(err), "父评论不存在应返回 NotFound")

	root, err := svc.CreateRootComment(ctx, 1, 1, "一号书的评论", nil)
	require.NoError(t, err)

	_, err = svc.CreateReply(ctx, 2, root.ID, 2, "挂错书", nil)
	assert.True(t, IsNotFound(err), "父评论属于其他图书应返回 NotFound")
}

func TestListRootCommentsOrderAndPaging(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.CreateRootComment(ctx, 1, 1, fmt.Sprintf("第 %d 条", i), nil)
		require.NoError(t, err)
	}

	views, total, err := svc.ListRootComments(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, views, 2)
	// 最新优先
	assert.Equal(t, "第 5 条", views[0].Content)
	assert.Equal(t, "第 4 条", views[1].Content)

	views, _, err = svc.ListRootComments(ctx, 1, 3, 2)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "第 1 条", views[0].Content)

	// 越界页返回空列表
	views, _, err = svc.ListRootComments(ctx, 1, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestListRepliesOrder(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := svc.CreateReply(ctx, 1, root.ID, 2, fmt.Sprintf("回复 %d", i), nil)
		require.NoError(t, err)
	}

	views, total, err := svc.ListReplies(ctx, root.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, views, 3)
	// 回复按时间正序
	assert.Equal(t, "回复 1", views[0].Content)
	assert.Equal(t, "回复 3", views[2].Content)
	assert.Equal(t, 1, views[0].Level)

	_, _, err = svc.ListReplies(ctx, 999, 1, 10)
	assert.True(t, IsNotFound(err))
}

func TestFetchTreeDepthAndOrder(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	// 结构：
	// rootA
	//   a1
	//     a11
	//       a111 (第 3 层，默认深度下被截断)
	// rootB (较新，排前面)
	rootA, err := svc.CreateRootComment(ctx, 1, 1, "rootA", starOf(5))
	require.NoError(t, err)
	a1, err := svc.CreateReply(ctx, 1, rootA.ID, 2, "a1", nil)
	require.NoError(t, err)
	a11, err := svc.CreateReply(ctx, 1, a1.ID, 1, "a11", nil)
	require.NoError(t, err)
	_, err = svc.CreateReply(ctx, 1, a11.ID, 2, "a111", nil)
	require.NoError(t, err)
	_, err = svc.CreateRootComment(ctx, 1, 2, "rootB", nil)
	require.NoError(t, err)

	flat, total, err := svc.FetchTree(ctx, 1, DefaultTreeDepth, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "total 只统计根评论")

	contents := make([]string, len(flat))
	for i, v := range flat {
		contents[i] = v.Content
	}
	// rootB 最新排前；rootA 子树深度优先展开到第 2 层，a111 被截断
	assert.Equal(t, []string{"rootB", "rootA", "a1", "a11"}, contents)

	// 根评论的 TotalRepliesCount 包含被截断的后代
	assert.EqualValues(t, 0, flat[0].TotalRepliesCount)
	assert.EqualValues(t, 3, flat[1].TotalRepliesCount)

	// 层级标注
	assert.Equal(t, 0, flat[1].Level)
	assert.Equal(t, 1, flat[2].Level)
	assert.Equal(t, 2, flat[3].Level)

	// 放宽深度后完整展开
	flat, _, err = svc.FetchTree(ctx, 1, 5, 1, 10)
	require.NoError(t, err)
	assert.Len(t, flat, 5)
}

func TestFetchTreeSiblingOrder(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := svc.CreateReply(ctx, 1, root.ID, 2, fmt.Sprintf("楼层 %d", i), nil)
		require.NoError(t, err)
	}

	flat, _, err := svc.FetchTree(ctx, 1, DefaultTreeDepth, 1, 10)
	require.NoError(t, err)
	require.Len(t, flat, 4)
	// 同级回复按时间正序
	assert.Equal(t, "楼层 1", flat[1].Content)
	assert.Equal(t, "楼层 2", flat[2].Content)
	assert.Equal(t, "楼层 3", flat[3].Content)
}

func TestUpdateComment(t *testing.T) {
	svc, store := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "初版", starOf(3))
	require.NoError(t, err)

	// 只改内容，星级保持
	v, err := svc.UpdateComment(ctx, root.ID, 1, "修订版", nil)
	require.NoError(t, err)
	assert.Equal(t, "修订版", v.Content)
	require.NotNil(t, v.Star)
	assert.Equal(t, 3, *v.Star)
	assert.NotNil(t, v.UpdatedAt)

	// 同时改星级
	v, err = svc.UpdateComment(ctx, root.ID, 1, "再版", starOf(5))
	require.NoError(t, err)
	assert.Equal(t, 5, *v.Star)

	stored, err := store.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "再版", stored.Content)

	// 非作者非管理员被拒
	_, err = svc.UpdateComment(ctx, root.ID, 2, "篡改", nil)
	assert.True(t, IsPermission(err))

	// 管理员可编辑
	_, err = svc.UpdateComment(ctx, root.ID, 9, "管理员修订", nil)
	assert.NoError(t, err)

	_, err = svc.UpdateComment(ctx, 999, 1, "无中生有", nil)
	assert.True(t, IsNotFound(err))
}

func TestUpdateReplyRejectsStar(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)
	reply, err := svc.CreateReply(ctx, 1, root.ID, 2, "回复", nil)
	require.NoError(t, err)

	_, err = svc.UpdateComment(ctx, reply.ID, 2, "改成评分", starOf(4))
	assert.True(t, IsValidation(err), "给回复加星级应被拒绝")

	// 不带星级的正常编辑不受影响
	v, err := svc.UpdateComment(ctx, reply.ID, 2, "正常编辑", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Level)
}

func TestDeleteCommentCascade(t *testing.T) {
	svc, store := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)
	reply, err := svc.CreateReply(ctx, 1, root.ID, 2, "一层", nil)
	require.NoError(t, err)
	_, err = svc.CreateReply(ctx, 1, reply.ID, 1, "二层", nil)
	require.NoError(t, err)
	other, err := svc.CreateRootComment(ctx, 1, 2, "无关评论", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteComment(ctx, root.ID, 1))

	n, err := svc.CountComments(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "整棵子树应被删除，无关评论保留")

	survivor, err := store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, survivor)

	// 已删除的 id 再删返回 NotFound
	err = svc.DeleteComment(ctx, root.ID, 1)
	assert.True(t, IsNotFound(err))
}

func TestDeletePermissions(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)

	err = svc.DeleteComment(ctx, root.ID, 2)
	assert.True(t, IsPermission(err), "他人无权删除")

	// 管理员可删任意评论
	require.NoError(t, svc.DeleteComment(ctx, root.ID, 9))
}

func TestCanEditCanDelete(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)

	ok, err := svc.CanEdit(ctx, root.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanEdit(ctx, root.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanDelete(ctx, root.ID, 9)
	require.NoError(t, err)
	assert.True(t, ok, "管理员可删除")
}

func TestCounts(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	root, err := svc.CreateRootComment(ctx, 1, 1, "主楼", nil)
	require.NoError(t, err)
	reply, err := svc.CreateReply(ctx, 1, root.ID, 2, "一层", nil)
	require.NoError(t, err)
	_, err = svc.CreateReply(ctx, 1, reply.ID, 1, "二层", nil)
	require.NoError(t, err)

	total, err := svc.CountComments(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	roots, err := svc.CountRootComments(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, roots)

	direct, err := svc.CountReplies(ctx, root.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, direct, "只统计直接回复")
}

func TestDeletedUserDisplayName(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	v, err := svc.CreateRootComment(ctx, 1, 777, "孤儿评论", nil)
	require.NoError(t, err)
	assert.Equal(t, "已注销用户", v.AuthorName)
}
