package conversation

// StepID identifies one interview stage.
type StepID string

const (
	StepDestination StepID = "destination"
	StepCondition   StepID = "condition"
	StepToilet      StepID = "toilet"
	StepMood        StepID = "mood"
	StepMeal        StepID = "meal"
	StepWater       StepID = "water"
	StepMedicine    StepID = "medicine"
	StepFamily      StepID = "family"
	StepMemo        StepID = "memo"
)

// Step is one fixed stage of the interview.
type Step struct {
	ID     StepID `json:"id"`
	Prompt string `json:"prompt"`
	Hint   string `json:"hint,omitempty"`
}

// Text is the system message shown when the step starts.
func (s Step) Text() string {
	if s.Hint == "" {
		return s.Prompt
	}
	return s.Prompt + "\n" + s.Hint
}

// DefaultSteps returns the interview in its fixed order.
func DefaultSteps() []Step {
	return []Step{
		{ID: StepDestination, Prompt: "行き先を教えてください。", Hint: "例: 自宅から〇〇園まで など"},
		{ID: StepCondition, Prompt: "その時の状態は落ち着いていましたか？", Hint: "落ち着き/不穏/発作の有無など"},
		{ID: StepToilet, Prompt: "トイレには行きましたか？排尿・排便はありましたか？", Hint: "排尿・排便の有無、介助内容"},
		{ID: StepMood, Prompt: "気分や表情はどうでしたか？", Hint: "晴れやか / 少し不安など簡潔に"},
		{ID: StepMeal, Prompt: "食事はどのくらい摂りましたか？", Hint: "完食 / 半分 / ほとんどなし など"},
		{ID: StepWater, Prompt: "水分はどのくらい摂りましたか？", Hint: "十分 / やや不足 など"},
		{ID: StepMedicine, Prompt: "お薬は内服できましたか？", Hint: "服薬できた / 忘れた / 拒否 など"},
		{ID: StepFamily, Prompt: "ご家族や他職員との交流はありましたか？", Hint: "会話や対応の様子があれば"},
		{ID: StepMemo, Prompt: "その他、気になったことがあれば教えてください。", Hint: "短くメモしたい内容があれば自由に"},
	}
}

// ValidStep reports whether id names one of the default steps.
func ValidStep(id StepID) bool {
	for _, s := range DefaultSteps() {
		if s.ID == id {
			return true
		}
	}
	return false
}
