package handlers

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookden/internal/db"
	"bookden/internal/middleware"
	"bookden/internal/models"
	"bookden/internal/services"
	"bookden/internal/utils"

	"github.com/gin-gonic/gin"
)

const booksPerPage = 30

type BookHandler struct {
	commentService *services.CommentService
}

func NewBookHandler(commentService *services.CommentService) *BookHandler {
	return &BookHandler{
		commentService: commentService,
	}
}

// fillBookStats 批量填充图书的评论数和星级均值
func fillBookStats(books []models.Book) {
	if len(books) == 0 {
		return
	}

	bookIDs := make([]uint, len(books))
	for i, b := range books {
		bookIDs[i] = b.ID
	}

	// 批量查询评论数量
	type countResult struct {
		BookID uint
		Count  int
	}
	var counts []countResult
	db.DB.Model(&models.Comment{}).
		Select("book_id, COUNT(*) as count").
		Where("book_id IN ?", bookIDs).
		Group("book_id").
		Scan(&counts)

	countMap := make(map[uint]int)
	for _, r := range counts {
		countMap[r.BookID] = r.Count
	}

	// 批量查询根评论星级均值
	type starResult struct {
		BookID uint
		Avg    float64
		Num    int
	}
	var stars []starResult
	db.DB.Model(&models.Comment{}).
		Select("book_id, AVG(star) as avg, COUNT(star) as num").
		Where("book_id IN ? AND parent_id IS NULL AND star IS NOT NULL", bookIDs).
		Group("book_id").
		Scan(&stars)

	starMap := make(map[uint]starResult)
	for _, r := range stars {
		starMap[r.BookID] = r
	}

	for i := range books {
		books[i].CommentCount = countMap[books[i].ID]
		if agg, ok := starMap[books[i].ID]; ok {
			books[i].AvgStar = math.Round(agg.Avg*10) / 10
			books[i].StarCount = agg.Num
		}
	}
}

func pageParam(c *gin.Context) int {
	page := 1
	if p := c.Query("page"); p != "" {
		if pageNum, err := strconv.Atoi(p); err == nil && pageNum > 0 {
			page = pageNum
		}
	}
	return page
}

func totalPages(total int64, perPage int) int {
	pages := int(math.Ceil(float64(total) / float64(perPage)))
	if pages == 0 {
		pages = 1
	}
	return pages
}

func loadCategories() []models.Category {
	var categories []models.Category
	db.DB.Order("id ASC").Find(&categories)
	return categories
}

// ListHot 首页 - 按热度排序
func (h *BookHandler) ListHot(c *gin.Context) {
	page := pageParam(c)

	cacheKey := fmt.Sprintf("book:hot:page:%d", page)
	if cachedData := utils.GetCache().Get(cacheKey); cachedData != nil {
		if hData, ok := cachedData.(gin.H); ok {
			Render(c, http.StatusOK, "book/list.html", hData)
			return
		}
	}

	var total int64
	db.DB.Model(&models.Book{}).Count(&total)

	var books []models.Book
	db.DB.Preload("Author").Preload("Category").
		Order("heat DESC, created_at DESC").
		Limit(booksPerPage).
		Offset((page - 1) * booksPerPage).
		Find(&books)

	fillBookStats(books)

	renderData := gin.H{
		"Books":       books,
		"Categories":  loadCategories(),
		"Active":      "hot",
		"Title":       "热门图书",
		"CurrentPage": page,
		"TotalPages":  totalPages(total, booksPerPage),
	}

	// 写入缓存，有效期 1 分钟
	utils.GetCache().Set(cacheKey, renderData, 1*time.Minute)

	Render(c, http.StatusOK, "book/list.html", renderData)
}

// ListNew 最新收录
func (h *BookHandler) ListNew(c *gin.Context) {
	page := pageParam(c)

	var total int64
	db.DB.Model(&models.Book{}).Count(&total)

	var books []models.Book
	db.DB.Preload("Author").Preload("Category").
		Order("created_at DESC").
		Limit(booksPerPage).
		Offset((page - 1) * booksPerPage).
		Find(&books)

	fillBookStats(books)

	Render(c, http.StatusOK, "book/list.html", gin.H{
		"Books":       books,
		"Categories":  loadCategories(),
		"Active":      "new",
		"Title":       "最新收录",
		"CurrentPage": page,
		"TotalPages":  totalPages(total, booksPerPage),
	})
}

// ListByCategory 分类下的图书
func (h *BookHandler) ListByCategory(c *gin.Context) {
	categoryName := c.Param("name")

	var category models.Category
	if err := db.DB.Where("name = ?", categoryName).First(&category).Error; err != nil {
		RenderError(c, http.StatusNotFound, "分类不存在")
		return
	}

	page := pageParam(c)

	var total int64
	db.DB.Model(&models.Book{}).Where("category_id = ?", category.ID).Count(&total)

	var books []models.Book
	db.DB.Preload("Author").Preload("Category").
		Where("category_id = ?", category.ID).
		Order("created_at DESC").
		Limit(booksPerPage).
		Offset((page - 1) * booksPerPage).
		Find(&books)

	fillBookStats(books)

	Render(c, http.StatusOK, "book/list.html", gin.H{
		"Books":       books,
		"Categories":  loadCategories(),
		"Active":      "category",
		"Title":       category.Name,
		"Category":    category,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, booksPerPage),
	})
}

// ListByAuthor 作者名下的图书
func (h *BookHandler) ListByAuthor(c *gin.Context) {
	authorID := utils.StringToUint(c.Param("id"))

	var author models.Author
	if err := db.DB.First(&author, authorID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "作者不存在")
		return
	}

	page := pageParam(c)

	var total int64
	db.DB.Model(&models.Book{}).Where("author_id = ?", author.ID).Count(&total)

	var books []models.Book
	db.DB.Preload("Author").Preload("Category").
		Where("author_id = ?", author.ID).
		Order("created_at DESC").
		Limit(booksPerPage).
		Offset((page - 1) * booksPerPage).
		Find(&books)

	fillBookStats(books)

	Render(c, http.StatusOK, "book/author.html", gin.H{
		"Books":       books,
		"Author":      author,
		"Title":       author.Name,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, booksPerPage),
	})
}

// ListByPublisher 出版社名下的图书
func (h *BookHandler) ListByPublisher(c *gin.Context) {
	publisherID := utils.StringToUint(c.Param("id"))

	var publisher models.Publisher
	if err := db.DB.First(&publisher, publisherID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "出版社不存在")
		return
	}

	page := pageParam(c)

	var total int64
	db.DB.Model(&models.Book{}).Where("publisher_id = ?", publisher.ID).Count(&total)

	var books []models.Book
	db.DB.Preload("Author").Preload("Category").
		Where("publisher_id = ?", publisher.ID).
		Order("created_at DESC").
		Limit(booksPerPage).
		Offset((page - 1) * booksPerPage).
		Find(&books)

	fillBookStats(books)

	Render(c, http.StatusOK, "book/publisher.html", gin.H{
		"Books":       books,
		"Publisher":   publisher,
		"Title":       publisher.Name,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, booksPerPage),
	})
}

// ListByTag 标签下的图书
func (h *BookHandler) ListByTag(c *gin.Context) {
	tagName := c.Param("name")

	var tag models.Tag
	if err := db.DB.Where("name = ?", tagName).First(&tag).Error; err != nil {
		RenderError(c, http.StatusNotFound, "标签不存在")
		return
	}

	page := pageParam(c)

	var total int64
	db.DB.Model(&models.BookTag{}).Where("tag_id = ?", tag.ID).Count(&total)

	var bookTags []models.BookTag
	db.DB.Preload("Book").Preload("Book.Author").Preload("Book.Category").
		Where("tag_id = ?", tag.ID).
		Order("created_at DESC").
		Limit(booksPerPage).
		Offset((page - 1) * booksPerPage).
		Find(&bookTags)

	books := make([]models.Book, 0, len(bookTags))
	for _, bt := range bookTags {
		books = append(books, bt.Book)
	}
	fillBookStats(books)

	Render(c, http.StatusOK, "book/list.html", gin.H{
		"Books":       books,
		"Categories":  loadCategories(),
		"Active":      "tag",
		"Title":       "#" + tag.Name,
		"Tag":         tag,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, booksPerPage),
	})
}

// Search 搜索图书（标题 / ISBN / 作者名），登录用户记录搜索历史
func (h *BookHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	var books []models.Book
	if query != "" {
		searchPattern := "%" + query + "%"
		db.DB.Preload("Author").Preload("Category").
			Joins("JOIN authors ON authors.id = books.author_id").
			Where("books.title ILIKE ? OR books.isbn ILIKE ? OR authors.name ILIKE ?",
				searchPattern, searchPattern, searchPattern).
			Order("books.created_at DESC").
			Limit(50).
			Find(&books)
	}

	fillBookStats(books)

	// 登录用户记录搜索历史
	if query != "" {
		if u, exists := c.Get(middleware.CheckUserKey); exists && u != nil {
			history := models.SearchHistory{
				UserID:      u.(*models.User).ID,
				Query:       query,
				ResultCount: len(books),
			}
			db.DB.Create(&history)
		}
	}

	Render(c, http.StatusOK, "search.html", gin.H{
		"Books":  books,
		"Query":  query,
		"Active": "search",
		"Title":  "搜索 - " + query,
	})
}

// RenderedComment 评论树条目 + 渲染后的正文
type RenderedComment struct {
	services.CommentView
	ContentHTML template.HTML
}

// Detail 图书详情页：简介、评分聚合、评论树
func (h *BookHandler) Detail(c *gin.Context) {
	bid := c.Param("bid")

	var book models.Book
	if err := db.DB.Preload("Author").Preload("Category").Preload("Publisher").Preload("Creator").
		Where("bid = ?", bid).First(&book).Error; err != nil {
		RenderError(c, http.StatusNotFound, "图书不存在")
		return
	}

	// 增加浏览量
	db.DB.Model(&book).UpdateColumn("views", book.Views+1)
	book.Views++

	// 异步更新热度
	services.GetHeatService().ScheduleUpdate(book.ID)

	// 当前用户 ID 用于收藏状态
	userID := uint(0)
	if u, exists := c.Get(middleware.CheckUserKey); exists && u != nil {
		userID = u.(*models.User).ID
	}

	// 评论树（分页根评论 + 2 层回复）
	commentPage := pageParam(c)
	tree, rootTotal, err := h.commentService.FetchTree(c.Request.Context(), book.ID, services.DefaultTreeDepth, commentPage, 20)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "评论加载失败")
		return
	}

	renderedComments := make([]RenderedComment, len(tree))
	for i, v := range tree {
		renderedComments[i] = RenderedComment{
			CommentView: v,
			ContentHTML: utils.RenderMarkdown(v.Content),
		}
	}

	commentTotal, _ := h.commentService.CountComments(c.Request.Context(), book.ID)

	stats := []models.Book{book}
	fillBookStats(stats)
	book = stats[0]

	var favoriteCount int64
	db.DB.Model(&models.Favorite{}).Where("book_id = ?", book.ID).Count(&favoriteCount)

	isFavorited := false
	if userID > 0 {
		var favorite models.Favorite
		if err := db.DB.Where("user_id = ? AND book_id = ?", userID, book.ID).First(&favorite).Error; err == nil {
			isFavorited = true
		}
	}

	// 图书标签
	var bookTags []models.BookTag
	db.DB.Preload("Tag").Where("book_id = ?", book.ID).Find(&bookTags)
	tags := make([]models.Tag, 0, len(bookTags))
	for _, bt := range bookTags {
		tags = append(tags, bt.Tag)
	}

	descriptionHTML := utils.RenderMarkdown(book.Description)

	Render(c, http.StatusOK, "book/detail.html", gin.H{
		"Book":              book,
		"Description":       descriptionHTML,
		"Comments":          renderedComments,
		"CommentTotal":      commentTotal,
		"RootCommentTotal":  rootTotal,
		"CommentPage":       commentPage,
		"CommentTotalPages": totalPages(rootTotal, 20),
		"FavoriteCount":     favoriteCount,
		"IsFavorited":       isFavorited,
		"Tags":              tags,
		"Title":             book.Title,
	})
}

// ShowCreate 收录图书页面
func (h *BookHandler) ShowCreate(c *gin.Context) {
	Render(c, http.StatusOK, "book/create.html", gin.H{
		"Title":      "收录图书",
		"Categories": loadCategories(),
	})
}

// findOrCreateAuthor 按名字查找作者，不存在则创建
func findOrCreateAuthor(name string) (*models.Author, error) {
	var author models.Author
	if err := db.DB.Where("name = ?", name).First(&author).Error; err == nil {
		return &author, nil
	}
	author = models.Author{Name: name}
	if err := db.DB.Create(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

func findOrCreatePublisher(name string) (*models.Publisher, error) {
	var publisher models.Publisher
	if err := db.DB.Where("name = ?", name).First(&publisher).Error; err == nil {
		return &publisher, nil
	}
	publisher = models.Publisher{Name: name}
	if err := db.DB.Create(&publisher).Error; err != nil {
		return nil, err
	}
	return &publisher, nil
}

// syncBookTags 解析逗号分隔的标签串并同步 BookTag 关联
func syncBookTags(bookID uint, raw string) {
	db.DB.Where("book_id = ?", bookID).Delete(&models.BookTag{})

	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var tag models.Tag
		if err := db.DB.Where("name = ?", name).First(&tag).Error; err != nil {
			tag = models.Tag{Name: name}
			if err := db.DB.Create(&tag).Error; err != nil {
				continue
			}
		}
		db.DB.Create(&models.BookTag{BookID: bookID, TagID: tag.ID})
	}
}

// Create 提交收录
func (h *BookHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	if user.Status == 2 {
		RenderError(c, http.StatusForbidden, "您的账号已被封禁，无法收录图书。")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	authorName := strings.TrimSpace(c.PostForm("author"))
	publisherName := strings.TrimSpace(c.PostForm("publisher"))
	isbn := strings.TrimSpace(c.PostForm("isbn"))
	description := c.PostForm("description")
	coverURL := strings.TrimSpace(c.PostForm("cover_url"))
	publishYear := utils.StringToInt(c.PostForm("publish_year"))
	tagsRaw := c.PostForm("tags")

	if title == "" || authorName == "" {
		Render(c, http.StatusBadRequest, "book/create.html", gin.H{
			"Error":      "书名和作者不能为空",
			"Categories": loadCategories(),
		})
		return
	}

	// 解析分类ID,默认为1
	categoryID := uint(1)
	if id := utils.StringToUint(c.PostForm("category_id")); id > 0 {
		categoryID = id
	}

	author, err := findOrCreateAuthor(authorName)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "收录失败")
		return
	}

	book := models.Book{
		Bid:         utils.RandShortID(8),
		Title:       title,
		AuthorID:    author.ID,
		CategoryID:  categoryID,
		ISBN:        isbn,
		Description: description,
		CoverURL:    coverURL,
		PublishYear: publishYear,
		CreatedBy:   user.ID,
	}

	if publisherName != "" {
		publisher, err := findOrCreatePublisher(publisherName)
		if err == nil {
			book.PublisherID = &publisher.ID
		}
	}

	if err := db.DB.Create(&book).Error; err != nil {
		Render(c, http.StatusInternalServerError, "book/create.html", gin.H{
			"Error":      "收录失败",
			"Categories": loadCategories(),
		})
		return
	}

	syncBookTags(book.ID, tagsRaw)

	// 列表页缓存失效
	utils.GetCache().Delete("book:hot:page:1")

	c.Redirect(http.StatusFound, "/b/"+book.Bid)
}

// canManageBook 录入者本人或管理员
func canManageBook(book *models.Book, user *models.User) bool {
	return book.CreatedBy == user.ID || user.IsAdmin()
}

func (h *BookHandler) ShowEdit(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	bid := c.Param("bid")

	var book models.Book
	if err := db.DB.Preload("Author").Preload("Publisher").Where("bid = ?", bid).First(&book).Error; err != nil {
		RenderError(c, http.StatusNotFound, "图书不存在")
		return
	}

	if !canManageBook(&book, user) {
		RenderError(c, http.StatusForbidden, "无权编辑此图书")
		return
	}

	var bookTags []models.BookTag
	db.DB.Preload("Tag").Where("book_id = ?", book.ID).Find(&bookTags)
	tagNames := make([]string, 0, len(bookTags))
	for _, bt := range bookTags {
		tagNames = append(tagNames, bt.Tag.Name)
	}

	Render(c, http.StatusOK, "book/edit.html", gin.H{
		"Title":      "编辑图书",
		"Book":       book,
		"Tags":       strings.Join(tagNames, ", "),
		"Categories": loadCategories(),
	})
}

func (h *BookHandler) Update(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	bid := c.Param("bid")

	var book models.Book
	if err := db.DB.Where("bid = ?", bid).First(&book).Error; err != nil {
		RenderError(c, http.StatusNotFound, "图书不存在")
		return
	}

	if !canManageBook(&book, user) {
		RenderError(c, http.StatusForbidden, "无权编辑此图书")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	authorName := strings.TrimSpace(c.PostForm("author"))
	if title == "" || authorName == "" {
		Render(c, http.StatusBadRequest, "book/edit.html", gin.H{
			"Error":      "书名和作者不能为空",
			"Book":       book,
			"Categories": loadCategories(),
		})
		return
	}

	author, err := findOrCreateAuthor(authorName)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "保存失败")
		return
	}

	book.Title = title
	book.AuthorID = author.ID
	book.ISBN = strings.TrimSpace(c.PostForm("isbn"))
	book.Description = c.PostForm("description")
	book.CoverURL = strings.TrimSpace(c.PostForm("cover_url"))
	book.PublishYear = utils.StringToInt(c.PostForm("publish_year"))
	if id := utils.StringToUint(c.PostForm("category_id")); id > 0 {
		book.CategoryID = id
	}

	if publisherName := strings.TrimSpace(c.PostForm("publisher")); publisherName != "" {
		publisher, err := findOrCreatePublisher(publisherName)
		if err == nil {
			book.PublisherID = &publisher.ID
		}
	} else {
		book.PublisherID = nil
	}

	if err := db.DB.Save(&book).Error; err != nil {
		Render(c, http.StatusInternalServerError, "book/edit.html", gin.H{
			"Error":      "保存失败",
			"Book":       book,
			"Categories": loadCategories(),
		})
		return
	}

	syncBookTags(book.ID, c.PostForm("tags"))

	c.Redirect(http.StatusFound, "/b/"+bid)
}

// Delete 删除图书（HTMX），评论/收藏/标签经外键级联清理
func (h *BookHandler) Delete(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	bid := c.Param("bid")

	var book models.Book
	if err := db.DB.Where("bid = ?", bid).First(&book).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	if !canManageBook(&book, user) {
		c.Status(http.StatusForbidden)
		return
	}

	// Hard Delete
	db.DB.Unscoped().Delete(&book)

	utils.GetCache().Delete("book:hot:page:1")

	redirect := c.GetHeader("HX-Current-URL")
	if strings.Contains(redirect, "/b/") {
		// We are on detail page
		c.Header("HX-Redirect", "/")
	}
	c.Status(http.StatusOK)
}
