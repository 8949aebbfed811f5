package narrative

import (
	"strings"

	"service-note-backend/internal/notes"
)

var conditionFacts = []struct {
	flag notes.ConditionFlag
	text string
}{
	{notes.ConditionSeizure, "移動中に軽い発作があった"},
	{notes.ConditionAgitated, "興奮気味な場面があった"},
	{notes.ConditionSlightlyUnstable, "一時的に不安定な様子が見られた"},
	{notes.ConditionCalm, "全体として落ち着いた様子だった"},
	{notes.ConditionChanged, "いつもと比べて様子に変化があった"},
	{notes.ConditionUnchanged, "体調や様子に大きな変化はなかった"},
}

var moodFacts = map[notes.Mood]string{
	notes.MoodSunny:     "表情は明るく穏やかだった",
	notes.MoodCloudySun: "おおむね穏やかだが、時折不安そうな様子もあった",
	notes.MoodCloudy:    "やや元気がない様子が見られた",
	notes.MoodRainy:     "不安定な様子が見られ、こまめに声かけを行った",
}

var mealFoodFacts = map[notes.MealFood]string{
	notes.MealFoodAll:  "食事は全量摂取",
	notes.MealFoodHalf: "食事は半量程度",
	notes.MealFoodNone: "食事量は少ない／摂取なし",
}

var mealWaterFacts = map[notes.MealWater]string{
	notes.MealWaterEnough: "水分摂取は十分",
	notes.MealWaterLack:   "水分摂取はやや不足気味",
}

var medicationFacts = map[notes.Medication]string{
	notes.MedicationTaken:   "服薬は指示どおり行えた",
	notes.MedicationForgot:  "服薬を忘れていたため確認と声かけを行った",
	notes.MedicationRefused: "服薬の拒否があり、状況を共有して様子を見ている",
}

// BuildFacts lists only what was observed, one line per enabled section, as
// input for the narrative formatter. Returns "" when nothing applies.
func BuildFacts(f notes.Fields) string {
	f = notes.Clone(f)
	var lines []string

	if f.Sections[notes.SectionCondition] {
		var parts []string
		for _, c := range conditionFacts {
			if f.Condition[c.flag] {
				parts = append(parts, c.text)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, "状態・様子: "+strings.Join(parts, "／"))
		}
	}

	if f.Sections[notes.SectionToilet] {
		t := f.Toilet
		var parts []string
		if t[notes.ToiletUrination] || t[notes.ToiletBoth] {
			parts = append(parts, "排尿介助を行った")
		}
		if t[notes.ToiletDefecation] || t[notes.ToiletBoth] {
			parts = append(parts, "排便介助を行った")
		}
		if t[notes.ToiletNone] {
			parts = append(parts, "トイレ誘導は行っていない")
		}
		if t[notes.ToiletDiaper] {
			parts = append(parts, "おむつ交換を行った")
		}
		if t[notes.ToiletAssist] {
			parts = append(parts, "トイレ動作の見守りや声かけを行った")
		}
		if len(parts) > 0 {
			lines = append(lines, "トイレ・排泄: "+strings.Join(parts, "／"))
		}
	}

	if f.Sections[notes.SectionMood] {
		if s, ok := moodFacts[f.Mood]; ok {
			lines = append(lines, "気分・表情: "+s)
		}
	}

	if f.Sections[notes.SectionMeal] {
		var parts []string
		if s, ok := mealFoodFacts[f.MealFood]; ok {
			parts = append(parts, s)
		}
		if s, ok := mealWaterFacts[f.MealWater]; ok {
			parts = append(parts, s)
		}
		if len(parts) > 0 {
			lines = append(lines, "食事・水分: "+strings.Join(parts, "／"))
		}
	}

	if f.Sections[notes.SectionMedication] {
		if s, ok := medicationFacts[f.Medication]; ok {
			lines = append(lines, "服薬: "+s)
		}
	}

	if memo := strings.TrimSpace(f.Memo); memo != "" {
		lines = append(lines, "補足メモ: "+memo)
	}
	return strings.Join(lines, "\n")
}
