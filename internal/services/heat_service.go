package services

import (
	"log"
	"sync"
	"time"

	"bookden/internal/db"
	"bookden/internal/models"
	"bookden/internal/utils"
)

// HeatService 提供异步计算和更新图书热度分的服务
type HeatService struct {
	queue   chan uint // 待更新的图书 ID 队列
	pending map[uint]bool
	mu      sync.Mutex
}

var (
	heatService *HeatService
	heatOnce    sync.Once
)

// GetHeatService 获取单例热度服务
func GetHeatService() *HeatService {
	heatOnce.Do(func() {
		heatService = &HeatService{
			queue:   make(chan uint, 1000), // 缓冲队列，防止阻塞
			pending: make(map[uint]bool),
		}
		// 启动后台 worker
		go heatService.worker()
	})
	return heatService
}

// ScheduleUpdate 将图书加入更新队列（异步）。
// 去重避免短时间内重复计算同一本书。
func (s *HeatService) ScheduleUpdate(bookID uint) {
	s.mu.Lock()
	if s.pending[bookID] {
		s.mu.Unlock()
		return
	}
	s.pending[bookID] = true
	s.mu.Unlock()

	select {
	case s.queue <- bookID:
	default:
		// 队列满了，移除 pending 标记
		s.mu.Lock()
		delete(s.pending, bookID)
		s.mu.Unlock()
		log.Printf("热度更新队列已满，跳过图书 %d", bookID)
	}
}

// worker 后台处理队列中的更新请求
func (s *HeatService) worker() {
	batch := make([]uint, 0, 50)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case bookID := <-s.queue:
			batch = append(batch, bookID)
			if len(batch) >= 50 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *HeatService) processBatch(bookIDs []uint) {
	for _, bookID := range bookIDs {
		s.updateBookHeat(bookID)

		s.mu.Lock()
		delete(s.pending, bookID)
		s.mu.Unlock()
	}
}

// updateBookHeat 计算并更新单本书的热度分
func (s *HeatService) updateBookHeat(bookID uint) {
	var book models.Book
	if err := db.DB.First(&book, bookID).Error; err != nil {
		log.Printf("更新热度失败：图书 %d 不存在", bookID)
		return
	}

	var favorites int64
	db.DB.Model(&models.Favorite{}).Where("book_id = ?", bookID).Count(&favorites)

	var comments int64
	db.DB.Model(&models.Comment{}).Where("book_id = ?", bookID).Count(&comments)

	// 根评论星级均值
	type starAgg struct {
		Avg float64
	}
	var agg starAgg
	db.DB.Model(&models.Comment{}).
		Select("COALESCE(AVG(star), 0) as avg").
		Where("book_id = ? AND parent_id IS NULL AND star IS NOT NULL", bookID).
		Scan(&agg)

	newHeat := utils.CalculateHeat(book.CreatedAt, int(favorites), int(comments), agg.Avg)

	if err := db.DB.Model(&book).UpdateColumn("heat", int(newHeat)).Error; err != nil {
		log.Printf("更新图书 %d 热度失败: %v", bookID, err)
	}
}

// StartScheduledHeatUpdate 启动定时热度刷新任务（每天凌晨 3 点执行）
func (s *HeatService) StartScheduledHeatUpdate() {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}
			time.Sleep(time.Until(next))

			log.Println("开始定时刷新图书热度...")
			s.refreshRecentBooks()
			log.Println("定时刷新图书热度完成")
		}
	}()
}

// refreshRecentBooks 刷新最近 30 天以及当前热度最高的 30 本书
func (s *HeatService) refreshRecentBooks() {
	processed := make(map[uint]bool)
	count := 0

	monthAgo := time.Now().AddDate(0, 0, -30)
	var recent []models.Book
	db.DB.Where("created_at >= ?", monthAgo).Select("id").Find(&recent)
	for _, b := range recent {
		s.updateBookHeat(b.ID)
		processed[b.ID] = true
		count++
	}

	var top []models.Book
	db.DB.Order("heat DESC").Limit(30).Select("id").Find(&top)
	for _, b := range top {
		if !processed[b.ID] {
			s.updateBookHeat(b.ID)
			count++
		}
	}

	log.Printf("本次刷新 %d 本图书热度", count)
}
