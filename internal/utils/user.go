package utils

import (
	"math/rand"
	"time"
)

// GetReaderLevel 根据评论 + 收藏总数返回读者等级
func GetReaderLevel(activity int) (name string, icon string) {
	switch {
	case activity >= 1000:
		return "藏书家", "🏛️"
	case activity >= 201:
		return "书痴", "📖"
	case activity >= 51:
		return "书虫", "🐛"
	case activity >= 11:
		return "常客", "📕"
	default:
		return "新读者", "🔖"
	}
}

// GetDaysSinceJoined 计算注册天数
func GetDaysSinceJoined(createdAt time.Time) int {
	return int(time.Since(createdAt).Hours() / 24)
}

// GetRandomEmoji 返回一个随机 emoji 用于默认头像
func GetRandomEmoji() string {
	emojis := []string{"📚", "📖", "📕", "📗", "📘", "📙", "🔖", "🖋️", "🦉", "🐛", "☕", "🕯️"}
	return emojis[rand.Intn(len(emojis))]
}

// GetCommonEmojis 返回常用 emoji 列表供用户选择
func GetCommonEmojis() []string {
	return []string{
		"📚", "📖", "📕", "📗", "📘", "📙", "🔖", "🖋️",
		"🦉", "🐛", "☕", "🕯️", "🐼", "🦊", "🐨", "🐸",
		"😀", "😃", "😄", "😁", "😊", "😎", "🤓", "🧐",
		"👨‍💻", "👩‍💻", "👨‍🎨", "👩‍🎨", "🧑‍🚀", "👨‍🔬", "👩‍🔬", "🧙",
		"⭐", "✨", "🔥", "💡", "🚀", "🎯", "💎", "🏆",
	}
}
