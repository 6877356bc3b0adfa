package utils

import (
	"math"
	"time"
)

type HeatConfig struct {
	Gravity        float64 // 时间重力
	WeightFavorite float64
	WeightComment  float64
	WeightStar     float64
	ScaleFactor    float64 // 放大系数
}

var DefaultHeatConfig = HeatConfig{
	Gravity:        1.5,
	WeightFavorite: 3.0,
	WeightComment:  2.0,
	WeightStar:     1.5,
	ScaleFactor:    100.0, // 让分数落在 0-100 区间，像"温度"
}

// CalculateHeat 计算图书热度，用于"热门"列表的内存排序。
// 加权互动值取对数平滑后按发布时间衰减。
func CalculateHeat(t time.Time, favorites, comments int, avgStar float64) float64 {
	hours := time.Since(t).Hours()

	weightedSum := (float64(favorites) * DefaultHeatConfig.WeightFavorite) +
		(float64(comments) * DefaultHeatConfig.WeightComment) +
		(avgStar * DefaultHeatConfig.WeightStar)

	if weightedSum < 0 {
		weightedSum = 0 // 防止负数无法取对数
	}

	// log10(sum + 1) -> 确保 sum=0 时结果为 0
	logScore := math.Log10(weightedSum + 1)
	numerator := logScore * DefaultHeatConfig.ScaleFactor

	// 时间衰减 (分母)
	decay := math.Pow(hours+2, DefaultHeatConfig.Gravity)

	return numerator / decay
}
