package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookden/internal/db"
	"bookden/internal/hub"
	"bookden/internal/middleware"
	"bookden/internal/router"
	"bookden/internal/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	// 初始化异步热度服务并启动每日定时刷新
	heatService := services.GetHeatService()
	heatService.StartScheduledHeatUpdate()

	// 实时通知：进程内 Hub + 可选的 Redis 跨实例转发
	wsHub := hub.Get()
	notifier := hub.NewNotifierFromEnv()
	notifier.StartSubscriber(context.Background(), wsHub)

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("bookden_session", store))

	// Load Templates using Multitemplate to avoid collision and allow handler names
	r.HTMLRender = loadTemplates("./web/templates")

	// Static Assets
	r.Static("/static", "./web/static")

	// Middleware
	r.Use(middleware.LoadUser())

	// Routes
	router.RegisterRoutes(r, wsHub, notifier)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("BookDen server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	includes, err := filepath.Glob(templatesDir + "/includes/*.html")
	if err != nil {
		panic(err)
	}

	components, err := filepath.Glob(templatesDir + "/components/*.html")
	if err != nil {
		panic(err)
	}

	// Helper to assemble files
	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, includes...)
		files = append(files, components...)
		files = append(files, view)
		return files
	}

	// FuncMap
	funcMap := template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"timeAgo": func(t interface{}) string {
			// 尝试将输入转换为 time.Time
			var timeVal time.Time
			switch v := t.(type) {
			case time.Time:
				timeVal = v
			case *time.Time:
				if v == nil {
					return ""
				}
				timeVal = *v
			default:
				return ""
			}

			duration := time.Since(timeVal)
			seconds := int(duration.Seconds())

			if seconds < 60 {
				return fmt.Sprintf("%d秒前", seconds)
			} else if seconds < 3600 {
				return fmt.Sprintf("%d分钟前", seconds/60)
			} else if seconds < 86400 {
				return fmt.Sprintf("%d小时前", seconds/3600)
			} else if seconds < 2592000 {
				return fmt.Sprintf("%d天前", seconds/86400)
			} else if seconds < 31536000 {
				return fmt.Sprintf("%d个月前", seconds/2592000)
			}
			return fmt.Sprintf("%d年前", seconds/31536000)
		},
		"eq": func(a, b interface{}) bool {
			return a == b
		},
		"gt": func(a, b int) bool {
			return a > b
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
		// derefStar 星级指针取值，NULL 返回 0
		"derefStar": func(star *int) int {
			if star == nil {
				return 0
			}
			return *star
		},
		// starSeq 渲染星级图标用的序列 [1..5]
		"starSeq": func() []int {
			return []int{1, 2, 3, 4, 5}
		},
		"stripHTML": func(s string) string {
			// 简单的 HTML 标签移除
			var result []rune
			inTag := false
			for _, r := range s {
				if r == '<' {
					inTag = true
				} else if r == '>' {
					inTag = false
				} else if !inTag {
					result = append(result, r)
				}
			}
			// 移除多余的空白
			text := string(result)
			// 替换 &nbsp; 等 HTML 实体
			text = strings.ReplaceAll(text, "&nbsp;", " ")
			text = strings.ReplaceAll(text, "&amp;", "&")
			text = strings.ReplaceAll(text, "&lt;", "<")
			text = strings.ReplaceAll(text, "&gt;", ">")
			text = strings.ReplaceAll(text, "&quot;", "\"")
			text = strings.ReplaceAll(text, "&#39;", "'")
			return strings.TrimSpace(text)
		},
		"urlquery": func(s string) string {
			return url.QueryEscape(s)
		},
	}

	// Manual registration to ensure keys match handler expectation
	// Auth
	r.AddFromFilesFuncs("auth/login.html", funcMap, assemble(templatesDir+"/views/auth/login.html")...)
	r.AddFromFilesFuncs("auth/register.html", funcMap, assemble(templatesDir+"/views/auth/register.html")...)
	r.AddFromFilesFuncs("auth/activate.html", funcMap, assemble(templatesDir+"/views/auth/activate.html")...)
	r.AddFromFilesFuncs("auth/forgot_password.html", funcMap, assemble(templatesDir+"/views/auth/forgot_password.html")...)
	r.AddFromFilesFuncs("auth/reset_password.html", funcMap, assemble(templatesDir+"/views/auth/reset_password.html")...)

	// Book
	// list.html handles "/", "/new", "/c/:name" and "/tag/:name"
	r.AddFromFilesFuncs("book/list.html", funcMap, assemble(templatesDir+"/views/book/list.html")...)
	r.AddFromFilesFuncs("book/detail.html", funcMap, assemble(templatesDir+"/views/book/detail.html")...)
	r.AddFromFilesFuncs("book/create.html", funcMap, assemble(templatesDir+"/views/book/create.html")...)
	r.AddFromFilesFuncs("book/edit.html", funcMap, assemble(templatesDir+"/views/book/edit.html")...)
	r.AddFromFilesFuncs("book/author.html", funcMap, assemble(templatesDir+"/views/book/author.html")...)
	r.AddFromFilesFuncs("book/publisher.html", funcMap, assemble(templatesDir+"/views/book/publisher.html")...)

	// User
	r.AddFromFilesFuncs("user/profile.html", funcMap, assemble(templatesDir+"/views/user/profile.html")...)
	r.AddFromFilesFuncs("user/settings.html", funcMap, assemble(templatesDir+"/views/user/settings.html")...)
	r.AddFromFilesFuncs("user/search_history.html", funcMap, assemble(templatesDir+"/views/user/search_history.html")...)

	// Notification
	r.AddFromFilesFuncs("notification.html", funcMap, assemble(templatesDir+"/views/notification.html")...)

	// Search
	r.AddFromFilesFuncs("search.html", funcMap, assemble(templatesDir+"/views/search.html")...)

	// Admin
	r.AddFromFilesFuncs("admin/dashboard.html", funcMap, assemble(templatesDir+"/views/admin/dashboard.html")...)
	r.AddFromFilesFuncs("admin/users.html", funcMap, assemble(templatesDir+"/views/admin/users.html")...)
	r.AddFromFilesFuncs("admin/authors.html", funcMap, assemble(templatesDir+"/views/admin/authors.html")...)
	r.AddFromFilesFuncs("admin/publishers.html", funcMap, assemble(templatesDir+"/views/admin/publishers.html")...)
	r.AddFromFilesFuncs("admin/categories.html", funcMap, assemble(templatesDir+"/views/admin/categories.html")...)
	r.AddFromFilesFuncs("admin/tags.html", funcMap, assemble(templatesDir+"/views/admin/tags.html")...)

	// Error
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	// HTMX 局部片段（不套布局）
	r.AddFromFilesFuncs("components/comment_item.html", funcMap, templatesDir+"/components/comment_item.html")
	r.AddFromFilesFuncs("components/comment_replies.html", funcMap, templatesDir+"/components/comment_replies.html")
	r.AddFromFilesFuncs("components/favorite_button.html", funcMap, templatesDir+"/components/favorite_button.html")

	return r
}
