package notes

import (
	"encoding/json"
	"strings"

	"service-note-backend/internal/expression"
)

// NoteForm is the legacy flat encoding kept in stored answer snapshots:
// multi-selects are lists of flag names and single-selects are plain strings
// with "" meaning unset. Convert with FromForm / ToForm at the boundary only.
type NoteForm struct {
	Condition   []string `json:"condition"`
	Toilet      []string `json:"toilet"`
	Mood        string   `json:"mood"`
	MealFood    string   `json:"mealFood"`
	MealWater   string   `json:"mealWater"`
	Medication  string   `json:"medication"`
	Interaction string   `json:"interaction"`
	Memo        string   `json:"memo"`
	Destination string   `json:"destination"`
}

// StoredAnswers is the persisted snapshot for one task: the deterministic
// detailed text plus the raw form for later editing.
type StoredAnswers struct {
	Actual string    `json:"actual,omitempty"`
	Form   *NoteForm `json:"form,omitempty"`
}

func DefaultForm() NoteForm {
	return NoteForm{Condition: []string{}, Toilet: []string{}}
}

// FromForm converts the flat form into a record, deriving sections from
// which groups carry a value. familyReport has no flat signal and stays off.
func FromForm(form NoteForm) Fields {
	f := Empty()
	for _, id := range form.Condition {
		if _, ok := f.Condition[ConditionFlag(id)]; ok {
			f.Condition[ConditionFlag(id)] = true
		}
	}
	for _, id := range form.Toilet {
		if _, ok := f.Toilet[ToiletFlag(id)]; ok {
			f.Toilet[ToiletFlag(id)] = true
		}
	}

	f.Mood = Mood(form.Mood)
	f.MealFood = MealFood(form.MealFood)
	f.MealWater = MealWater(form.MealWater)
	f.Medication = Medication(form.Medication)
	f.Interaction = Interaction(form.Interaction)
	f.Memo = form.Memo
	f.Destination = form.Destination

	f.Sections = map[SectionKey]bool{
		SectionCondition:    len(form.Condition) > 0,
		SectionToilet:       len(form.Toilet) > 0,
		SectionMood:         form.Mood != "",
		SectionMeal:         form.MealFood != "" || form.MealWater != "",
		SectionMedication:   form.Medication != "",
		SectionFamilyReport: false,
	}
	return normalizeFields(f)
}

// ToForm flattens a record. Sections are not representable and are dropped.
func ToForm(fields Fields) NoteForm {
	n := normalizeFields(fields)
	form := NoteForm{
		Condition:   []string{},
		Toilet:      []string{},
		Mood:        string(n.Mood),
		MealFood:    string(n.MealFood),
		MealWater:   string(n.MealWater),
		Medication:  string(n.Medication),
		Interaction: string(n.Interaction),
		Memo:        n.Memo,
		Destination: n.Destination,
	}
	for _, k := range ConditionFlags {
		if n.Condition[k] {
			form.Condition = append(form.Condition, string(k))
		}
	}
	for _, k := range ToiletFlags {
		if n.Toilet[k] {
			form.Toilet = append(form.Toilet, string(k))
		}
	}
	return form
}

// HasContent reports whether anything was entered on the form.
func HasContent(form NoteForm) bool {
	if len(form.Condition) > 0 || len(form.Toilet) > 0 {
		return true
	}
	if form.Mood != "" || form.MealFood != "" || form.MealWater != "" ||
		form.Medication != "" || form.Interaction != "" ||
		strings.TrimSpace(form.Destination) != "" {
		return true
	}
	return strings.TrimSpace(form.Memo) != ""
}

type partialForm struct {
	Condition   any `mapstructure:"condition"`
	Toilet      any `mapstructure:"toilet"`
	Mood        any `mapstructure:"mood"`
	MealFood    any `mapstructure:"mealFood"`
	MealWater   any `mapstructure:"mealWater"`
	Medication  any `mapstructure:"medication"`
	Interaction any `mapstructure:"interaction"`
	Memo        any `mapstructure:"memo"`
	Destination any `mapstructure:"destination"`
}

// UnmarshalJSON accepts a partial or foreign form: unknown list entries and
// values outside the option sets are dropped instead of failing.
func (form *NoteForm) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*form = decodeForm(raw)
	return nil
}

func decodeForm(raw map[string]any) NoteForm {
	var p partialForm
	form := DefaultForm()
	if err := decodeExact(raw, &p); err != nil {
		return form
	}

	form.Condition = knownList(ConditionOptions, p.Condition)
	form.Toilet = knownList(ToiletOptions, p.Toilet)
	form.Mood = knownValue(MoodOptions, p.Mood)
	form.MealFood = knownValue(MealFoodOptions, p.MealFood)
	form.MealWater = knownValue(MealWaterOptions, p.MealWater)
	form.Medication = knownValue(MedicationOptions, p.Medication)
	form.Interaction = knownValue(InteractionOptions, p.Interaction)
	form.Memo, _ = p.Memo.(string)
	form.Destination, _ = p.Destination.(string)
	return form
}

func knownList(options []Option, v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if isKnown(options, item) {
			out = append(out, item.(string))
		}
	}
	return out
}

func knownValue(options []Option, v any) string {
	if isKnown(options, v) {
		return v.(string)
	}
	return ""
}

// RestoreForm returns the form to edit for a task. Without a stored form the
// default form is used; a blank stored destination falls back to the task's
// scheduled destination. The destination is always rewritten.
func RestoreForm(stored *StoredAnswers, fallbackDestination string) NoteForm {
	if stored == nil || stored.Form == nil {
		form := DefaultForm()
		form.Destination = expression.Rewrite(fallbackDestination)
		return form
	}

	form := *stored.Form
	form.Condition = append([]string{}, filterKnown(ConditionOptions, form.Condition)...)
	form.Toilet = append([]string{}, filterKnown(ToiletOptions, form.Toilet)...)
	form.Mood = knownValue(MoodOptions, form.Mood)
	form.MealFood = knownValue(MealFoodOptions, form.MealFood)
	form.MealWater = knownValue(MealWaterOptions, form.MealWater)
	form.Medication = knownValue(MedicationOptions, form.Medication)
	form.Interaction = knownValue(InteractionOptions, form.Interaction)

	dest := form.Destination
	if strings.TrimSpace(dest) == "" {
		dest = fallbackDestination
	}
	form.Destination = expression.Rewrite(dest)
	return form
}

func filterKnown(options []Option, ids []string) []string {
	var out []string
	for _, id := range ids {
		if isKnown(options, id) {
			out = append(out, id)
		}
	}
	return out
}
