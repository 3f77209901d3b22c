package service

import (
	"fmt"
	"strings"

	"github.com/duotopia/duotopia-api/internal/models"
)

// Feedback banding. Cutoffs are inclusive: a score of exactly 90 earns
// the top band.
const (
	bandExcellent  = 90
	bandGood       = 80
	bandAcceptable = 70

	strongDimension = 85
	weakDimension   = 70
)

// dimensionMeans are the per-student averages over scored items.
type dimensionMeans struct {
	Accuracy      float64
	Fluency       float64
	Pronunciation float64
	Completeness  float64
}

func bandPhrase(score float64) string {
	switch {
	case score >= bandExcellent:
		return "優秀"
	case score >= bandGood:
		return "良好"
	case score >= bandAcceptable:
		return "尚可"
	default:
		return "需加強"
	}
}

// itemFeedback renders one scored item's comment: a phrase per dimension
// joined with a full-width comma.
func itemFeedback(s models.AssessmentScores) string {
	parts := []string{
		"準確度" + bandPhrase(s.Accuracy),
		"流暢度" + bandPhrase(s.Fluency),
		"發音" + bandPhrase(s.Pronunciation),
		"完整度" + bandPhrase(s.Completeness),
	}
	return strings.Join(parts, "，") + "。"
}

// assignmentFeedback renders the per-student assignment comment. It always
// opens with the completion clause; with zero completed items the
// dimension clauses are omitted entirely.
func assignmentFeedback(totalItems, completedItems int, totalScore float64, means dimensionMeans) string {
	clauses := []string{fmt.Sprintf("完成了 %d/%d 題", completedItems, totalItems)}

	if completedItems == 0 {
		clauses = append(clauses, "尚未有可評分的錄音", "請提醒學生完成錄音練習")
		return strings.Join(clauses, "，") + "。"
	}

	switch {
	case totalScore >= bandExcellent:
		clauses = append(clauses, "整體表現優異")
	case totalScore >= bandGood:
		clauses = append(clauses, "整體表現良好")
	case totalScore >= bandAcceptable:
		clauses = append(clauses, "整體表現尚可")
	default:
		clauses = append(clauses, "整體表現需要加強")
	}

	labeled := []struct {
		name  string
		value float64
	}{
		{"準確度", means.Accuracy},
		{"流暢度", means.Fluency},
		{"發音", means.Pronunciation},
		{"完整度", means.Completeness},
	}
	var strong, weak []string
	for _, d := range labeled {
		if d.value >= strongDimension {
			strong = append(strong, d.name)
		} else if d.value < weakDimension {
			weak = append(weak, d.name)
		}
	}
	if len(strong) > 0 {
		clauses = append(clauses, strings.Join(strong, "、")+"表現突出")
	}
	if len(weak) > 0 {
		clauses = append(clauses, strings.Join(weak, "、")+"仍需加強")
	}

	switch {
	case totalScore >= bandExcellent:
		clauses = append(clauses, "請繼續保持")
	case totalScore >= bandGood:
		clauses = append(clauses, "再多加練習即可更上一層樓")
	case totalScore >= bandAcceptable:
		clauses = append(clauses, "建議搭配示範音檔反覆練習")
	default:
		clauses = append(clauses, "建議重新完成本次的朗讀練習")
	}

	return strings.Join(clauses, "，") + "。"
}
