package narrative

import (
	"fmt"
	"strings"

	"service-note-backend/internal/expression"
	"service-note-backend/internal/notes"
)

const nothingNotable = "特記なし"

// RuleLine leads every detailed report. It is addressed to the formatter, not
// to the reader of the final record.
const RuleLine = "【ルール】車・車両などの表現は電車やバスに言い換え、公園の遊具という記述は公園を散歩した等に変更してください。"

// BuildDetailed renders every field-group on its own line, using display
// labels and 特記なし for anything left empty.
func BuildDetailed(f notes.Fields) string {
	f = notes.Clone(f)

	var cond, toilet []string
	for _, k := range notes.ConditionFlags {
		if f.Condition[k] {
			cond = append(cond, notes.Label(notes.ConditionOptions, string(k)))
		}
	}
	for _, k := range notes.ToiletFlags {
		if f.Toilet[k] {
			toilet = append(toilet, notes.Label(notes.ToiletOptions, string(k)))
		}
	}

	food := notes.Label(notes.MealFoodOptions, string(f.MealFood))
	water := notes.Label(notes.MealWaterOptions, string(f.MealWater))
	memo := expression.Rewrite(strings.TrimSpace(f.Memo))
	dest := expression.Rewrite(strings.TrimSpace(f.Destination))

	lines := []string{
		RuleLine,
		section("行き先", dest),
		"① その時の状態・様子",
		"　" + joinOr(cond, "、"),
		"② トイレ・排泄状況",
		"　" + joinOr(toilet, "、"),
		section("気分・表情", notes.Label(notes.MoodOptions, string(f.Mood))),
		section("食事・水分摂取", joinOr([]string{
			"食事：" + orNothing(food),
			"水分：" + orNothing(water),
		}, "／")),
		section("服薬", notes.Label(notes.MedicationOptions, string(f.Medication))),
		section("家族・他職員との交流", notes.Label(notes.InteractionOptions, string(f.Interaction))),
		"実績メモ（短くてOK）：" + orNothing(memo),
	}
	return strings.Join(lines, "\n")
}

// SerializeAnswers builds the snapshot persisted on submission.
func SerializeAnswers(form notes.NoteForm) notes.StoredAnswers {
	return notes.StoredAnswers{
		Actual: BuildDetailed(notes.FromForm(form)),
		Form:   &form,
	}
}

func section(title, body string) string {
	return fmt.Sprintf("%s：%s", title, orNothing(body))
}

func joinOr(items []string, sep string) string {
	if len(items) == 0 {
		return nothingNotable
	}
	return strings.Join(items, sep)
}

func orNothing(s string) string {
	if s == "" {
		return nothingNotable
	}
	return s
}
