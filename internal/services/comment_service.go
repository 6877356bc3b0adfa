package services

import (
	"context"
	"strings"
	"time"

	"bookden/internal/models"
	"bookden/internal/utils"
)

// 评论正文长度限制（按 rune 计）
const (
	MinCommentLen = 1
	MaxCommentLen = 500
)

const (
	MinStar = 1
	MaxStar = 5
)

// DefaultTreeDepth 评论树默认展开层数，更深的回复通过"加载更多"按需拉取
const DefaultTreeDepth = 2

// CommentStore 评论持久化接口。Get 在记录不存在时返回 (nil, nil)，
// 由服务层统一转换为 NotFound 错误。
type CommentStore interface {
	Insert(ctx context.Context, comment *models.Comment) error
	Get(ctx context.Context, id uint) (*models.Comment, error)
	// ListRoots 返回某本书的根评论（created_at DESC, id DESC）及根评论总数
	ListRoots(ctx context.Context, bookID uint, page, pageSize int) ([]models.Comment, int64, error)
	// ListChildren 返回直接子回复（created_at ASC, id ASC）及直接子回复总数
	ListChildren(ctx context.Context, parentID uint, page, pageSize int) ([]models.Comment, int64, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	// DeleteCascade 原子删除评论及其全部后代
	DeleteCascade(ctx context.Context, id uint) error
	CountDescendants(ctx context.Context, id uint) (int64, error)
	CountRoots(ctx context.Context, bookID uint) (int64, error)
	CountChildren(ctx context.Context, id uint) (int64, error)
	CountByBook(ctx context.Context, bookID uint) (int64, error)
	BookExists(ctx context.Context, bookID uint) (bool, error)
}

// UserDirectory 提供评论展示所需的用户信息，管理员判定也经由它
type UserDirectory interface {
	DisplayName(ctx context.Context, userID uint) (string, error)
	Role(ctx context.Context, userID uint) (string, error)
}

// CommentView 对外返回的评论表示
type CommentView struct {
	ID         uint       `json:"id"`
	Cid        string     `json:"cid"`
	BookID     uint       `json:"book_id"`
	UserID     uint       `json:"user_id"`
	AuthorName string     `json:"author_name"`
	Content    string     `json:"content"`
	Star       *int       `json:"star,omitempty"`
	ParentID   *uint      `json:"parent_id,omitempty"`
	Level      int        `json:"level"`
	ReplyCount int64      `json:"reply_count"`
	// TotalRepliesCount 根评论的全部后代数（含被深度截断的），仅树查询填充
	TotalRepliesCount int64      `json:"total_replies_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

func (v *CommentView) IsRoot() bool {
	return v.ParentID == nil
}

// CommentService 管理图书评论树：根评论带星级，回复任意嵌套。
// 无内部状态，所有持久化经由 CommentStore。
type CommentService struct {
	store CommentStore
	users UserDirectory
}

func NewCommentService(store CommentStore, users UserDirectory) *CommentService {
	return &CommentService{store: store, users: users}
}

func validateContent(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	n := len([]rune(trimmed))
	if n < MinCommentLen {
		return "", NewValidationError("content", "评论内容不能为空")
	}
	if n > MaxCommentLen {
		return "", NewValidationError("content", "评论内容过长")
	}
	return trimmed, nil
}

func validateStar(star *int) error {
	if star == nil {
		return nil
	}
	if *star < MinStar || *star > MaxStar {
		return NewValidationError("star", "评分必须在 1-5 之间")
	}
	return nil
}

// CreateRootComment 发布根评论，可附带 1-5 的星级评分
func (s *CommentService) CreateRootComment(ctx context.Context, bookID, userID uint, text string, star *int) (*CommentView, error) {
	content, err := validateContent(text)
	if err != nil {
		return nil, err
	}
	if err := validateStar(star); err != nil {
		return nil, err
	}

	exists, err := s.store.BookExists(ctx, bookID)
	if err != nil {
		return nil, NewStorageError(err)
	}
	if !exists {
		return nil, NewNotFoundError("图书不存在")
	}

	comment := &models.Comment{
		Cid:     utils.RandShortID(8),
		BookID:  bookID,
		UserID:  userID,
		Content: content,
		Star:    star,
	}
	if err := s.store.Insert(ctx, comment); err != nil {
		return nil, NewStorageError(err)
	}

	return s.buildView(ctx, comment, 0)
}

// CreateReply 回复某条评论。bookID 非 0 时校验父评论属于该书。
// 回复不允许携带星级，传入 star 直接拒绝。
func (s *CommentService) CreateReply(ctx context.Context, bookID, parentID, userID uint, text string, star *int) (*CommentView, error) {
	if star != nil {
		return nil, NewValidationError("star", "回复不能附带评分")
	}
	content, err := validateContent(text)
	if err != nil {
		return nil, err
	}

	parent, err := s.store.Get(ctx, parentID)
	if err != nil {
		return nil, NewStorageError(err)
	}
	if parent == nil {
		return nil, NewNotFoundError("父评论不存在")
	}
	if bookID != 0 && parent.BookID != bookID {
		return nil, NewNotFoundError("父评论不属于该图书")
	}

	parentLevel, err := s.levelOf(ctx, parent)
	if err != nil {
		return nil, err
	}

	pid := parent.ID
	comment := &models.Comment{
		Cid:      utils.RandShortID(8),
		BookID:   parent.BookID,
		UserID:   userID,
		ParentID: &pid,
		Content:  content,
	}
	if err := s.store.Insert(ctx, comment); err != nil {
		return nil, NewStorageError(err)
	}

	return s.buildView(ctx, comment, parentLevel+1)
}

// UpdateComment 修改评论正文，根评论可同时调整星级（star 为 nil 表示保持不变）
func (s *CommentService) UpdateComment(ctx context.Context, commentID, editorID uint, text string, star *int) (*CommentView, error) {
	comment, err := s.mustGet(ctx, commentID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.isAuthorOrAdmin(ctx, comment, editorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError("只能编辑自己的评论")
	}

	content, err := validateContent(text)
	if err != nil {
		return nil, err
	}
	if star != nil && !comment.IsRoot() {
		return nil, NewValidationError("star", "回复不能附带评分")
	}
	if err := validateStar(star); err != nil {
		return nil, err
	}

	now := time.Now()
	fields := map[string]interface{}{
		"content":    content,
		"updated_at": &now,
	}
	if star != nil {
		fields["star"] = star
	}
	if err := s.store.Update(ctx, comment.ID, fields); err != nil {
		return nil, NewStorageError(err)
	}

	comment.Content = content
	comment.UpdatedAt = &now
	if star != nil {
		comment.Star = star
	}

	level, err := s.levelOf(ctx, comment)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, comment, level)
}

// DeleteComment 删除评论并级联删除全部后代。
// 对已不存在的 id 返回 NotFound，调用方可区分"从未存在"与"已删除"。
func (s *CommentService) DeleteComment(ctx context.Context, commentID, requesterID uint) error {
	comment, err := s.mustGet(ctx, commentID)
	if err != nil {
		return err
	}

	allowed, err := s.isAuthorOrAdmin(ctx, comment, requesterID)
	if err != nil {
		return err
	}
	if !allowed {
		return NewPermissionError("只能删除自己的评论")
	}

	if err := s.store.DeleteCascade(ctx, comment.ID); err != nil {
		return NewStorageError(err)
	}
	return nil
}

// ListRootComments 分页返回根评论（最新优先），total 为该书根评论总数
func (s *CommentService) ListRootComments(ctx context.Context, bookID uint, page, pageSize int) ([]CommentView, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	roots, total, err := s.store.ListRoots(ctx, bookID, page, pageSize)
	if err != nil {
		return nil, 0, NewStorageError(err)
	}

	views := make([]CommentView, 0, len(roots))
	for i := range roots {
		v, err := s.buildView(ctx, &roots[i], 0)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, *v)
	}
	return views, total, nil
}

// ListReplies 分页返回直接回复（时间正序，符合对话阅读顺序）
func (s *CommentService) ListReplies(ctx context.Context, parentID uint, page, pageSize int) ([]CommentView, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	parent, err := s.mustGet(ctx, parentID)
	if err != nil {
		return nil, 0, err
	}
	parentLevel, err := s.levelOf(ctx, parent)
	if err != nil {
		return nil, 0, err
	}

	children, total, err := s.store.ListChildren(ctx, parentID, page, pageSize)
	if err != nil {
		return nil, 0, NewStorageError(err)
	}

	views := make([]CommentView, 0, len(children))
	for i := range children {
		v, err := s.buildView(ctx, &children[i], parentLevel+1)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, *v)
	}
	return views, total, nil
}

// FetchTree 物化评论树：根评论按分页顺序排列，每条根评论后面紧跟其
// maxDepth 层以内的回复（父内按时间正序，深度优先）。更深的回复被省略，
// 但根评论的 TotalRepliesCount 仍反映全部后代数量。
func (s *CommentService) FetchTree(ctx context.Context, bookID uint, maxDepth, page, pageSize int) ([]CommentView, int64, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	page, pageSize = normalizePage(page, pageSize)

	roots, total, err := s.store.ListRoots(ctx, bookID, page, pageSize)
	if err != nil {
		return nil, 0, NewStorageError(err)
	}

	flat := make([]CommentView, 0, len(roots)*2)
	for i := range roots {
		root := &roots[i]
		v, err := s.buildView(ctx, root, 0)
		if err != nil {
			return nil, 0, err
		}
		descendants, err := s.store.CountDescendants(ctx, root.ID)
		if err != nil {
			return nil, 0, NewStorageError(err)
		}
		v.TotalRepliesCount = descendants
		flat = append(flat, *v)

		if err := s.appendChildren(ctx, root.ID, 1, maxDepth, &flat); err != nil {
			return nil, 0, err
		}
	}
	return flat, total, nil
}

// appendChildren 深度优先展开某条评论的回复，直到 maxDepth 层
func (s *CommentService) appendChildren(ctx context.Context, parentID uint, level, maxDepth int, out *[]CommentView) error {
	if level > maxDepth {
		return nil
	}

	// 逐页取完全部直接回复
	const batch = 100
	for page := 1; ; page++ {
		children, _, err := s.store.ListChildren(ctx, parentID, page, batch)
		if err != nil {
			return NewStorageError(err)
		}
		if len(children) == 0 {
			return nil
		}
		for i := range children {
			v, err := s.buildView(ctx, &children[i], level)
			if err != nil {
				return err
			}
			*out = append(*out, *v)
			if err := s.appendChildren(ctx, children[i].ID, level+1, maxDepth, out); err != nil {
				return err
			}
		}
		if len(children) < batch {
			return nil
		}
	}
}

// CountComments 某本书的评论总数（根评论 + 全部回复）
func (s *CommentService) CountComments(ctx context.Context, bookID uint) (int64, error) {
	n, err := s.store.CountByBook(ctx, bookID)
	if err != nil {
		return 0, NewStorageError(err)
	}
	return n, nil
}

// CountRootComments 某本书的根评论数
func (s *CommentService) CountRootComments(ctx context.Context, bookID uint) (int64, error) {
	n, err := s.store.CountRoots(ctx, bookID)
	if err != nil {
		return 0, NewStorageError(err)
	}
	return n, nil
}

// CountReplies 某条评论的直接回复数
func (s *CommentService) CountReplies(ctx context.Context, commentID uint) (int64, error) {
	n, err := s.store.CountChildren(ctx, commentID)
	if err != nil {
		return 0, NewStorageError(err)
	}
	return n, nil
}

// CanEdit 作者本人或管理员可编辑
func (s *CommentService) CanEdit(ctx context.Context, commentID, userID uint) (bool, error) {
	comment, err := s.mustGet(ctx, commentID)
	if err != nil {
		return false, err
	}
	return s.isAuthorOrAdmin(ctx, comment, userID)
}

// CanDelete 与 CanEdit 同一判定
func (s *CommentService) CanDelete(ctx context.Context, commentID, userID uint) (bool, error) {
	return s.CanEdit(ctx, commentID, userID)
}

func (s *CommentService) mustGet(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, NewStorageError(err)
	}
	if comment == nil {
		return nil, NewNotFoundError("评论不存在")
	}
	return comment, nil
}

func (s *CommentService) isAuthorOrAdmin(ctx context.Context, comment *models.Comment, userID uint) (bool, error) {
	if comment.UserID == userID {
		return true, nil
	}
	role, err := s.users.Role(ctx, userID)
	if err != nil {
		return false, NewStorageError(err)
	}
	return role == "admin", nil
}

// levelOf 沿 ParentID 链向上走到根，得到层级（根为 0）
func (s *CommentService) levelOf(ctx context.Context, comment *models.Comment) (int, error) {
	level := 0
	cur := comment
	for cur.ParentID != nil {
		parent, err := s.store.Get(ctx, *cur.ParentID)
		if err != nil {
			return 0, NewStorageError(err)
		}
		if parent == nil {
			// 父链断裂只可能是并发删除，按当前高度返回
			break
		}
		level++
		cur = parent
	}
	return level, nil
}

func (s *CommentService) buildView(ctx context.Context, comment *models.Comment, level int) (*CommentView, error) {
	name, err := s.users.DisplayName(ctx, comment.UserID)
	if err != nil {
		return nil, NewStorageError(err)
	}
	replyCount, err := s.store.CountChildren(ctx, comment.ID)
	if err != nil {
		return nil, NewStorageError(err)
	}

	return &CommentView{
		ID:         comment.ID,
		Cid:        comment.Cid,
		BookID:     comment.BookID,
		UserID:     comment.UserID,
		AuthorName: name,
		Content:    comment.Content,
		Star:       comment.Star,
		ParentID:   comment.ParentID,
		Level:      level,
		ReplyCount: replyCount,
		CreatedAt:  comment.CreatedAt,
		UpdatedAt:  comment.UpdatedAt,
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
