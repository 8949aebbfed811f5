package narrative

import (
	"strings"

	"service-note-backend/internal/notes"
)

// FallbackSummary is returned when a record carries nothing to report.
const FallbackSummary = "本日の支援について特記すべき点はありません。"

const memoLimit = 40

// condition headlines, highest priority first; only the first true flag speaks
var conditionHeadlines = []struct {
	flag notes.ConditionFlag
	text string
}{
	{notes.ConditionSeizure, "移動中に軽い発作が見られたため、安全の確保と体勢の調整を行いました。"},
	{notes.ConditionAgitated, "興奮気味な場面もあり、声かけや見守りを強めながら対応しました。"},
	{notes.ConditionSlightlyUnstable, "一時的に不安定な様子もありましたが、声かけにより落ち着かれています。"},
	{notes.ConditionCalm, "全体を通して落ち着いた様子で過ごされていました。"},
}

var moodSentences = map[notes.Mood]string{
	notes.MoodSunny:     "表情も明るく比較的穏やかに過ごされています。",
	notes.MoodCloudySun: "概ね穏やかですが、時折不安そうな様子も見られました。",
	notes.MoodCloudy:    "やや元気がない様子も見られました。",
	notes.MoodRainy:     "不安定な様子が見られたため、こまめに声かけを行いました。",
}

var mealFoodClauses = map[notes.MealFood]string{
	notes.MealFoodAll:  "食事は全量摂取されています",
	notes.MealFoodHalf: "食事は半量程度の摂取でした",
	notes.MealFoodNone: "食事はほとんど摂取されませんでした",
}

var mealWaterClauses = map[notes.MealWater]string{
	notes.MealWaterEnough: "水分は十分に摂取されています",
	notes.MealWaterLack:   "水分摂取がやや少ない印象でした",
}

var medicationSentences = map[notes.Medication]string{
	notes.MedicationTaken:   "服薬は指示どおり行えています。",
	notes.MedicationForgot:  "服薬の失念が見られたため、確認と声かけを行いました。",
	notes.MedicationRefused: "服薬の拒否が見られたため、状況を共有しつつ様子を見ています。",
}

// BuildSummary turns a record into a short paragraph. Groups that were never
// answered stay silent; interaction is not part of the summary.
func BuildSummary(f notes.Fields) string {
	f = notes.Clone(f)
	var parts []string

	if dest := strings.TrimSpace(f.Destination); dest != "" {
		parts = append(parts, f.Destination+"までの移動支援を行いました。")
	}

	for _, h := range conditionHeadlines {
		if f.Condition[h.flag] {
			parts = append(parts, h.text)
			break
		}
	}
	switch {
	case f.Condition[notes.ConditionChanged]:
		parts = append(parts, "普段と比べて体調や様子に変化が見られました。")
	case f.Condition[notes.ConditionUnchanged]:
		parts = append(parts, "体調や様子に大きな変化は見られませんでした。")
	}

	if s := toiletSentence(f.Toilet); s != "" {
		parts = append(parts, s)
	}

	if s, ok := moodSentences[f.Mood]; ok {
		parts = append(parts, s)
	}

	if f.MealFood != "" || f.MealWater != "" {
		var clauses []string
		if c, ok := mealFoodClauses[f.MealFood]; ok {
			clauses = append(clauses, c)
		}
		if c, ok := mealWaterClauses[f.MealWater]; ok {
			clauses = append(clauses, c)
		}
		if len(clauses) > 0 {
			parts = append(parts, strings.Join(clauses, "。")+"。")
		}
	}

	if s, ok := medicationSentences[f.Medication]; ok {
		parts = append(parts, s)
	}

	if memo := strings.TrimSpace(f.Memo); memo != "" {
		parts = append(parts, "メモ: "+truncateMemo(memo))
	}

	summary := strings.Join(parts, "")
	if summary == "" {
		return FallbackSummary
	}
	return summary
}

func toiletSentence(t map[notes.ToiletFlag]bool) string {
	var actions []string
	if t[notes.ToiletUrination] || t[notes.ToiletBoth] {
		actions = append(actions, "排尿介助")
	}
	if t[notes.ToiletDefecation] || t[notes.ToiletBoth] {
		actions = append(actions, "排便介助")
	}
	if t[notes.ToiletDiaper] {
		actions = append(actions, "おむつ交換")
	}
	if t[notes.ToiletAssist] {
		actions = append(actions, "動作の見守りや声かけ")
	}
	if len(actions) == 0 {
		return ""
	}
	return strings.Join(actions, "・") + "を行いました。"
}

func truncateMemo(memo string) string {
	r := []rune(memo)
	if len(r) <= memoLimit {
		return memo
	}
	return string(r[:memoLimit-1]) + "…"
}
