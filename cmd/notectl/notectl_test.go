package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-note-backend/internal/auth"
	"service-note-backend/internal/conversation"
	"service-note-backend/internal/notes"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRewriteCommand(t *testing.T) {
	out, err := execute(t, "", "rewrite", "車で", "公園の遊具")
	require.NoError(t, err)
	assert.Equal(t, "電車で 公園を散歩した\n", out)

	out, err = execute(t, "車両\n電車\n", "rewrite")
	require.NoError(t, err)
	assert.Equal(t, "バス\n電車\n", out)
}

func TestSummaryCommand_YAMLStdin(t *testing.T) {
	out, err := execute(t, "destination: 車で公園\nmood: sunny\ncondition:\n  calm: true\n", "summary")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "電車で公園までの移動支援を行いました。"))
	assert.Contains(t, out, "表情も明るく比較的穏やかに過ごされています。")
}

func TestDetailedCommand_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"destination":"まごめ園","toilet":{"diaper":true},"mealFood":"all"}`), 0o600))

	out, err := execute(t, "", "detailed", "-f", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "行き先：まごめ園", lines[1])

	out, err = execute(t, "", "detailed", "-f", path, "--snapshot")
	require.NoError(t, err)
	var stored notes.StoredAnswers
	require.NoError(t, json.Unmarshal([]byte(out), &stored))
	require.NotNil(t, stored.Form)
	assert.Equal(t, []string{"diaper"}, stored.Form.Toilet)
	assert.Equal(t, "all", stored.Form.MealFood)
	assert.Contains(t, stored.Actual, "行き先：まごめ園")
}

func TestParseFields(t *testing.T) {
	f, err := parseFields([]byte(`{"mood":"cloudy","bogus":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, notes.MoodCloudy, f.Mood)

	f, err = parseFields([]byte("memo: 車内で歌った\n"), ".yml")
	require.NoError(t, err)
	assert.Equal(t, "電車内で歌った", f.Memo)

	_, err = parseFields([]byte(`{"mood":`), ".json")
	assert.Error(t, err)

	_, err = parseFields([]byte("mood: [unclosed"), ".yaml")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "", "token", "--email", "sato@example.com")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "local")
	out, err := execute(t, "", "token", "--email", "sato@example.com")
	require.NoError(t, err)

	email, err := auth.ParseToken([]byte("local"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "sato@example.com", email)
}

type extractFunc func(ctx context.Context, step conversation.StepID, answer string, current notes.Fields) (notes.Fields, error)

func (f extractFunc) Extract(ctx context.Context, step conversation.StepID, answer string, current notes.Fields) (notes.Fields, error) {
	return f(ctx, step, answer, current)
}

func scripted(answers ...string) askFunc {
	return func(conversation.Step) (string, error) {
		if len(answers) == 0 {
			return "", io.EOF
		}
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}
}

func TestRunInterview(t *testing.T) {
	failed := false
	extractor := extractFunc(func(_ context.Context, step conversation.StepID, answer string, current notes.Fields) (notes.Fields, error) {
		next := notes.Clone(current)
		switch step {
		case conversation.StepDestination:
			next.Destination = answer
		case conversation.StepCondition:
			if !failed {
				failed = true
				return notes.Fields{}, &notes.ExtractionError{Step: string(step), StatusCode: 500, Reason: "AI の呼び出しに失敗しました"}
			}
			next.Condition[notes.ConditionCalm] = true
		case conversation.StepMood:
			next.Mood = notes.MoodSunny
		}
		return next, nil
	})

	engine := conversation.New(extractor, notes.Empty())
	var out bytes.Buffer
	err := runInterview(context.Background(), engine,
		scripted("車でまごめ園", "落ち着いていた", "", "落ち着いていた", "なし", "晴れやか", "-", "-", "-", "-", "-"),
		&out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "(1/9)")
	assert.Contains(t, text, "(9/9)")
	assert.Contains(t, text, padRight("ヘルパー", senderLabelWidth)+" 車でまごめ園")
	assert.Contains(t, text, "解析に失敗しました")
	assert.Contains(t, text, "電車でまごめ園までの移動支援を行いました。")
	assert.Contains(t, text, "行き先：電車でまごめ園")
	assert.True(t, engine.State().Finished)
}

func TestRunInterview_StopsOnEOF(t *testing.T) {
	extractor := extractFunc(func(_ context.Context, _ conversation.StepID, _ string, current notes.Fields) (notes.Fields, error) {
		return current, nil
	})
	engine := conversation.New(extractor, notes.Empty())

	var out bytes.Buffer
	require.NoError(t, runInterview(context.Background(), engine, scripted("自宅"), &out))
	assert.Contains(t, out.String(), "interview stopped before the last step")
	assert.Equal(t, 1, engine.State().StepIndex)
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ヘルパー  ", padRight("ヘルパー", 10))
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "toolong", padRight("toolong", 3))
}
