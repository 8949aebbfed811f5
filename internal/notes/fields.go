package notes

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"service-note-backend/internal/expression"
)

// Fields is the structured record of one service visit. Single-select values
// use "" for unset (null on the wire).
type Fields struct {
	Destination string
	Sections    map[SectionKey]bool
	Condition   map[ConditionFlag]bool
	Toilet      map[ToiletFlag]bool
	Mood        Mood
	MealFood    MealFood
	MealWater   MealWater
	Medication  Medication
	Interaction Interaction
	Memo        string
}

// Empty returns a record holding every canonical key at its default.
func Empty() Fields {
	f := Fields{
		Sections: map[SectionKey]bool{
			SectionCondition:    true,
			SectionToilet:       true,
			SectionMood:         true,
			SectionMeal:         true,
			SectionMedication:   true,
			SectionFamilyReport: false,
		},
		Condition: make(map[ConditionFlag]bool, len(ConditionFlags)),
		Toilet:    make(map[ToiletFlag]bool, len(ToiletFlags)),
	}
	for _, k := range ConditionFlags {
		f.Condition[k] = false
	}
	for _, k := range ToiletFlags {
		f.Toilet[k] = false
	}
	return f
}

// Clone returns a normalized deep copy of f.
func Clone(f Fields) Fields {
	return normalizeFields(f)
}

// Normalize rebuilds a well-formed record from an untrusted candidate: a
// Fields value, a decoded JSON/YAML object, or raw JSON bytes. Unknown keys
// and out-of-set values are dropped; anything unrecognisable yields Empty().
// Destination and memo always pass through expression.Rewrite.
func Normalize(candidate any) Fields {
	switch c := candidate.(type) {
	case Fields:
		return normalizeFields(c)
	case *Fields:
		if c == nil {
			return normalizeFields(Fields{})
		}
		return normalizeFields(*c)
	case json.RawMessage:
		return normalizeJSON(c)
	case []byte:
		return normalizeJSON(c)
	case map[string]any:
		return normalizeMap(c)
	default:
		return normalizeFields(Fields{})
	}
}

func normalizeFields(f Fields) Fields {
	out := Empty()

	for _, k := range ConditionFlags {
		out.Condition[k] = f.Condition[k]
	}
	for _, k := range ToiletFlags {
		out.Toilet[k] = f.Toilet[k]
	}
	// per-key override; missing keys keep their default
	for _, k := range SectionKeys {
		if v, ok := f.Sections[k]; ok {
			out.Sections[k] = v
		}
	}

	if f.Mood.Valid() {
		out.Mood = f.Mood
	}
	if f.MealFood.Valid() {
		out.MealFood = f.MealFood
	}
	if f.MealWater.Valid() {
		out.MealWater = f.MealWater
	}
	if f.Medication.Valid() {
		out.Medication = f.Medication
	}
	if f.Interaction.Valid() {
		out.Interaction = f.Interaction
	}

	out.Destination = expression.Rewrite(f.Destination)
	out.Memo = expression.Rewrite(f.Memo)
	return out
}

func normalizeJSON(data []byte) Fields {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Debug("discarding malformed fields payload", "error", err)
		return normalizeFields(Fields{})
	}
	return normalizeMap(raw)
}

// candidate mirrors the wire keys without trusting any of the value types.
type candidate struct {
	Destination any `mapstructure:"destination"`
	Sections    any `mapstructure:"sections"`
	Condition   any `mapstructure:"condition"`
	Toilet      any `mapstructure:"toilet"`
	Mood        any `mapstructure:"mood"`
	MealFood    any `mapstructure:"mealFood"`
	MealWater   any `mapstructure:"mealWater"`
	Medication  any `mapstructure:"medication"`
	Interaction any `mapstructure:"interaction"`
	Memo        any `mapstructure:"memo"`
}

// decodeExact decodes raw into out. Keys must match the tags exactly;
// "MOOD" or "Memo" are unknown keys, not spellings of mood and memo.
func decodeExact(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:    out,
		MatchName: func(mapKey, fieldName string) bool { return mapKey == fieldName },
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func normalizeMap(raw map[string]any) Fields {
	var c candidate
	if err := decodeExact(raw, &c); err != nil {
		slog.Debug("discarding undecodable fields payload", "error", err)
		return normalizeFields(Fields{})
	}

	f := Fields{
		Destination: coerceString(c.Destination),
		Sections:    make(map[SectionKey]bool),
		Condition:   make(map[ConditionFlag]bool),
		Toilet:      make(map[ToiletFlag]bool),
		Mood:        Mood(selectValue(c.Mood)),
		MealFood:    MealFood(selectValue(c.MealFood)),
		MealWater:   MealWater(selectValue(c.MealWater)),
		Medication:  Medication(selectValue(c.Medication)),
		Interaction: Interaction(selectValue(c.Interaction)),
		Memo:        coerceString(c.Memo),
	}

	for k, v := range flagMap(c.Sections) {
		if b, ok := v.(bool); ok {
			f.Sections[SectionKey(k)] = b
		}
	}
	for k, v := range flagMap(c.Condition) {
		f.Condition[ConditionFlag(k)] = v == true
	}
	for k, v := range flagMap(c.Toilet) {
		f.Toilet[ToiletFlag(k)] = v == true
	}
	return normalizeFields(f)
}

func flagMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[string]bool:
		out := make(map[string]any, len(m))
		for k, b := range m {
			out[k] = b
		}
		return out
	default:
		return nil
	}
}

func selectValue(v any) string {
	s, _ := v.(string)
	return s
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool, int, int64, float64, json.Number:
		return fmt.Sprint(s)
	default:
		return ""
	}
}

type wireFields struct {
	Destination string                 `json:"destination"`
	Sections    map[SectionKey]bool    `json:"sections"`
	Condition   map[ConditionFlag]bool `json:"condition"`
	Toilet      map[ToiletFlag]bool    `json:"toilet"`
	Mood        *string                `json:"mood"`
	MealFood    *string                `json:"mealFood"`
	MealWater   *string                `json:"mealWater"`
	Medication  *string                `json:"medication"`
	Interaction *string                `json:"interaction"`
	Memo        string                 `json:"memo"`
}

// MarshalJSON writes the camelCase wire shape with null for unset selects.
func (f Fields) MarshalJSON() ([]byte, error) {
	n := normalizeFields(f)
	return json.Marshal(wireFields{
		Destination: n.Destination,
		Sections:    n.Sections,
		Condition:   n.Condition,
		Toilet:      n.Toilet,
		Mood:        nullable(string(n.Mood)),
		MealFood:    nullable(string(n.MealFood)),
		MealWater:   nullable(string(n.MealWater)),
		Medication:  nullable(string(n.Medication)),
		Interaction: nullable(string(n.Interaction)),
		Memo:        n.Memo,
	})
}

// UnmarshalJSON decodes any object and normalizes it; it never fails on shape.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Normalize(raw)
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
