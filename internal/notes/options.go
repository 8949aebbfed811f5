package notes

// SectionKey names one of the six field-groups a record can include.
type SectionKey string

const (
	SectionCondition    SectionKey = "condition"    // ① その時の状態・様子
	SectionToilet       SectionKey = "toilet"       // ② トイレ・排泄
	SectionMood         SectionKey = "mood"         // ③ 気分・表情
	SectionMeal         SectionKey = "meal"         // ④ 食事・水分摂取
	SectionMedication   SectionKey = "medication"   // ⑤ 服薬
	SectionFamilyReport SectionKey = "familyReport" // ⑥ 家族・他職員からの報告
)

type ConditionFlag string

const (
	ConditionCalm             ConditionFlag = "calm"
	ConditionSlightlyUnstable ConditionFlag = "slightly-unstable"
	ConditionAgitated         ConditionFlag = "agitated"
	ConditionSeizure          ConditionFlag = "seizure"
	ConditionNoSeizure        ConditionFlag = "no-seizure"
	ConditionChanged          ConditionFlag = "condition-changed"
	ConditionUnchanged        ConditionFlag = "condition-unchanged"
)

type ToiletFlag string

const (
	ToiletUrination  ToiletFlag = "urination"
	ToiletDefecation ToiletFlag = "defecation"
	ToiletBoth       ToiletFlag = "both"
	ToiletNone       ToiletFlag = "no-toilet"
	ToiletDiaper     ToiletFlag = "diaper"
	ToiletAssist     ToiletFlag = "assist"
)

type Mood string

const (
	MoodSunny     Mood = "sunny"
	MoodCloudySun Mood = "cloudy-sun"
	MoodCloudy    Mood = "cloudy"
	MoodRainy     Mood = "rainy"
)

type MealFood string

const (
	MealFoodAll  MealFood = "all"
	MealFoodHalf MealFood = "half"
	MealFoodNone MealFood = "none"
)

type MealWater string

const (
	MealWaterEnough MealWater = "enough"
	MealWaterLack   MealWater = "lack"
)

type Medication string

const (
	MedicationTaken   Medication = "taken"
	MedicationForgot  Medication = "forgot"
	MedicationRefused Medication = "refused"
)

type Interaction string

const (
	InteractionHad  Interaction = "had"
	InteractionNone Interaction = "none"
)

// Option is one selectable value with the label shown on forms and in the
// detailed report.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Section keys, condition flags and toilet flags in canonical order. Every
// map in a normalized Fields holds exactly these keys.
var (
	SectionKeys = []SectionKey{
		SectionCondition, SectionToilet, SectionMood,
		SectionMeal, SectionMedication, SectionFamilyReport,
	}

	ConditionFlags = []ConditionFlag{
		ConditionCalm, ConditionSlightlyUnstable, ConditionAgitated,
		ConditionSeizure, ConditionNoSeizure, ConditionChanged, ConditionUnchanged,
	}

	ToiletFlags = []ToiletFlag{
		ToiletUrination, ToiletDefecation, ToiletBoth,
		ToiletNone, ToiletDiaper, ToiletAssist,
	}
)

var (
	ConditionOptions = []Option{
		{ID: "calm", Label: "落ち着いていた"},
		{ID: "slightly-unstable", Label: "少し不安定だった"},
		{ID: "agitated", Label: "落ち着いていなかった（不穏・怒り・涙など）"},
		{ID: "seizure", Label: "発作があった"},
		{ID: "no-seizure", Label: "発作はなかった"},
		{ID: "condition-changed", Label: "体調に変化あり（頭痛・腹痛・発熱など）"},
		{ID: "condition-unchanged", Label: "体調に変化なし"},
	}

	ToiletOptions = []Option{
		{ID: "urination", Label: "トイレに行った（排尿あり）"},
		{ID: "defecation", Label: "トイレに行った（排便あり）"},
		{ID: "both", Label: "トイレに行った（排尿・排便あり）"},
		{ID: "no-toilet", Label: "トイレに行かなかった"},
		{ID: "diaper", Label: "おむつ交換あり"},
		{ID: "assist", Label: "トイレ介助あり／自立"},
	}

	MoodOptions = []Option{
		{ID: "sunny", Label: "☀️ 明るい"},
		{ID: "cloudy-sun", Label: "🌤 普通"},
		{ID: "cloudy", Label: "☁️ 少し沈み"},
		{ID: "rainy", Label: "🌧 不機嫌"},
	}

	MealFoodOptions = []Option{
		{ID: "all", Label: "完食"},
		{ID: "half", Label: "半分"},
		{ID: "none", Label: "食欲なし"},
	}

	MealWaterOptions = []Option{
		{ID: "enough", Label: "十分"},
		{ID: "lack", Label: "不足"},
	}

	MedicationOptions = []Option{
		{ID: "taken", Label: "内服した"},
		{ID: "forgot", Label: "忘れた"},
		{ID: "refused", Label: "一部拒否"},
	}

	InteractionOptions = []Option{
		{ID: "had", Label: "あった"},
		{ID: "none", Label: "なかった"},
	}
)

// Label returns the display label for a value of the given option set, or ""
// when the value is unset or unknown.
func Label(options []Option, id string) string {
	for _, o := range options {
		if o.ID == id {
			return o.Label
		}
	}
	return ""
}

func isKnown(options []Option, v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return Label(options, s) != ""
}

func (m Mood) Valid() bool        { return isKnown(MoodOptions, string(m)) }
func (m MealFood) Valid() bool    { return isKnown(MealFoodOptions, string(m)) }
func (m MealWater) Valid() bool   { return isKnown(MealWaterOptions, string(m)) }
func (m Medication) Valid() bool  { return isKnown(MedicationOptions, string(m)) }
func (i Interaction) Valid() bool { return isKnown(InteractionOptions, string(i)) }
