package common

import (
	"strings"
)

// SkinType 膚質類型
type SkinType string

const (
	SkinNormal      SkinType = "normal"
	SkinSensitive   SkinType = "sensitive"
	SkinOily        SkinType = "oily"
	SkinDry         SkinType = "dry"
	SkinCombination SkinType = "combination"
)

// Valid 檢查膚質是否為已知類型
func (s SkinType) Valid() bool {
	switch s {
	case SkinNormal, SkinSensitive, SkinOily, SkinDry, SkinCombination:
		return true
	}
	return false
}

// ExpertiseLevel 使用者專業程度
type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

// Valid 檢查專業程度是否為已知類型
func (e ExpertiseLevel) Valid() bool {
	switch e {
	case ExpertiseBeginner, ExpertiseIntermediate, ExpertiseExpert:
		return true
	}
	return false
}

// UserProfile 使用者檔案
type UserProfile struct {
	UserKey   string         `json:"user_key"`
	SkinType  SkinType       `json:"skin_type"`
	Allergies []string       `json:"allergies"`
	Expertise ExpertiseLevel `json:"expertise_level"`
}

// NormalizeName 標準化成分名稱：小寫、去除前後空白、壓縮連續空白
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), " ")
}

// DedupeNames 保序去重（不分大小寫），同時去除空白項目
func DedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			continue
		}
		key := NormalizeName(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// StringSliceToString 將字符串切片轉換為逗號分隔的字符串
func StringSliceToString(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	return strings.Join(slice, ", ")
}
