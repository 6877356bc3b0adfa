package db

import (
	"log"
	"os"

	"bookden/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=bookden port=5432 sslmode=disable TimeZone=Asia/Shanghai"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	// Auto Migrate
	err = DB.AutoMigrate(
		&models.User{},
		&models.Author{},
		&models.Publisher{},
		&models.Category{},
		&models.Book{},
		&models.Tag{},
		&models.BookTag{},
		&models.Comment{},
		&models.Favorite{},
		&models.SearchHistory{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	// Seed initial categories
	seedCategories()
}

func seedCategories() {
	// 检查是否已有分类数据
	var count int64
	DB.Model(&models.Category{}).Count(&count)
	if count > 0 {
		log.Println("Categories already seeded, skipping")
		return
	}

	// 创建预设分类
	categories := []models.Category{
		{Name: "文学", Description: "小说、散文、诗歌"},
		{Name: "科技", Description: "计算机、科普、工程"},
		{Name: "历史", Description: "历史、传记、考古"},
		{Name: "生活", Description: "美食、旅行、手工"},
		{Name: "社科", Description: "哲学、心理、经济"},
	}

	for _, category := range categories {
		if err := DB.Create(&category).Error; err != nil {
			log.Printf("Failed to create category %s: %v", category.Name, err)
		}
	}
	log.Println("Initial categories created successfully")
}
