package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"service-note-backend/internal/notes"
)

// echo returns the current record unchanged.
func echo(_ context.Context, _ StepID, _ string, current notes.Fields) (notes.Fields, error) {
	return current, nil
}

func TestEngine_InitialState(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := New(NewMockExtractor(ctrl), notes.Empty())

	s := e.State()
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, 9, s.StepCount)
	assert.False(t, s.Finished)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Summary)
	require.Len(t, s.Transcript, 1)
	assert.Equal(t, FromSystem, s.Transcript[0].From)
	assert.Equal(t, DefaultSteps()[0].Text(), s.Transcript[0].Text)
	assert.Equal(t, Progress{Total: 9, Current: 1}, e.Progress())
}

func TestEngine_RunsAllStepsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)

	steps := DefaultSteps()
	var calls []any
	for _, step := range steps {
		calls = append(calls, extractor.EXPECT().
			Extract(gomock.Any(), step.ID, "answer "+string(step.ID), gomock.Any()).
			DoAndReturn(echo))
	}
	gomock.InOrder(calls...)

	e := New(extractor, notes.Empty())
	for i, step := range steps {
		cur, ok := e.CurrentStep()
		require.True(t, ok)
		require.Equal(t, step.ID, cur.ID)
		require.NoError(t, e.SubmitAnswer(context.Background(), "answer "+string(step.ID)))
		assert.Equal(t, i+1, e.State().StepIndex)
	}

	s := e.State()
	assert.True(t, s.Finished)
	assert.Equal(t, closingMessage, s.Transcript[len(s.Transcript)-1].Text)
	assert.Equal(t, Progress{Total: 9, Current: 9}, e.Progress())
	// prompt + 9 * (answer, ack, next prompt or closing)
	assert.Len(t, s.Transcript, 1+3*len(steps))

	_, ok := e.CurrentStep()
	assert.False(t, ok)
	assert.ErrorIs(t, e.SubmitAnswer(context.Background(), "more"), ErrFinished)
	assert.Len(t, e.State().Transcript, 1+3*len(steps))
}

func TestEngine_ReflectsExtractedFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)

	extractor.EXPECT().
		Extract(gomock.Any(), StepDestination, "自宅からまごめ園まで車で移動", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ StepID, answer string, current notes.Fields) (notes.Fields, error) {
			next := notes.Empty()
			next.Destination = answer
			return next, nil
		})

	e := New(extractor, notes.Empty())
	require.NoError(t, e.SubmitAnswer(context.Background(), "  自宅からまごめ園まで車で移動 "))

	s := e.State()
	assert.Equal(t, "自宅からまごめ園まで電車で移動", s.Fields.Destination)
	assert.Equal(t, 1, s.StepIndex)
	assert.Equal(t, "自宅からまごめ園まで電車で移動までの移動支援を行いました。", s.Summary)

	require.Len(t, s.Transcript, 4)
	assert.Equal(t, Message{From: FromUser, Text: "自宅からまごめ園まで車で移動"}, s.Transcript[1])
	assert.Equal(t, reflectedMessage, s.Transcript[2].Text)
	assert.Equal(t, DefaultSteps()[1].Text(), s.Transcript[3].Text)
}

func TestEngine_PassesCurrentFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)

	initial := notes.Empty()
	initial.Destination = "まごめ園"
	initial.Mood = notes.MoodSunny

	extractor.EXPECT().
		Extract(gomock.Any(), StepDestination, "はい", notes.Normalize(initial)).
		Return(initial, nil)

	e := New(extractor, initial)
	require.NoError(t, e.SubmitAnswer(context.Background(), "はい"))
}

func TestEngine_ExtractionFailureKeepsStep(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)

	extractor.EXPECT().
		Extract(gomock.Any(), StepDestination, gomock.Any(), gomock.Any()).
		Return(notes.Fields{}, &notes.ExtractionError{Step: "destination", StatusCode: 500, Reason: "AI の呼び出しに失敗しました"})

	initial := notes.Empty()
	initial.Destination = "自宅"
	e := New(extractor, initial)
	before := e.State()

	err := e.SubmitAnswer(context.Background(), "まごめ園")
	var xe *notes.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, 500, xe.StatusCode)
	assert.True(t, xe.Retryable())

	after := e.State()
	assert.Equal(t, before.StepIndex, after.StepIndex)
	assert.Equal(t, before.Fields, after.Fields)
	assert.Equal(t, before.Summary, after.Summary)
	require.Len(t, after.Transcript, len(before.Transcript)+2)
	assert.Equal(t, FromUser, after.Transcript[1].From)
	assert.Equal(t, "⚠️ 解析に失敗しました: AI の呼び出しに失敗しました。もう一度お試しください。", after.Transcript[2].Text)
	assert.Equal(t, "解析に失敗しました: AI の呼び出しに失敗しました", after.LastError)

	// retrying the same step works and clears the error
	extractor.EXPECT().
		Extract(gomock.Any(), StepDestination, "まごめ園", gomock.Any()).
		DoAndReturn(echo)
	require.NoError(t, e.SubmitAnswer(context.Background(), "まごめ園"))
	assert.Equal(t, 1, e.State().StepIndex)
	assert.Empty(t, e.State().LastError)
}

func TestEngine_PlainErrorBecomesExtractionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(notes.Fields{}, errors.New("connection refused"))

	e := New(extractor, notes.Empty())
	err := e.SubmitAnswer(context.Background(), "x")

	var xe *notes.ExtractionError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "destination", xe.Step)
	assert.Contains(t, e.State().LastError, "connection refused")
}

func TestEngine_BlankAnswerIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := New(NewMockExtractor(ctrl), notes.Empty())
	before := e.State()

	for _, blank := range []string{"", "   ", "\n\t"} {
		err := e.SubmitAnswer(context.Background(), blank)
		var ve *notes.ValidationError
		require.ErrorAs(t, err, &ve)
	}
	assert.Equal(t, before, e.State())
}

func TestEngine_SingleInFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	extractor.EXPECT().
		Extract(gomock.Any(), StepDestination, "first", gomock.Any()).
		DoAndReturn(func(ctx context.Context, step StepID, answer string, current notes.Fields) (notes.Fields, error) {
			close(started)
			<-release
			return current, nil
		}).
		Times(1)

	e := New(extractor, notes.Empty())

	done := make(chan error, 1)
	go func() {
		done <- e.SubmitAnswer(context.Background(), "first")
	}()
	<-started

	assert.True(t, e.State().Loading)
	assert.ErrorIs(t, e.SubmitAnswer(context.Background(), "second"), ErrBusy)

	close(release)
	require.NoError(t, <-done)

	s := e.State()
	assert.False(t, s.Loading)
	assert.Equal(t, 1, s.StepIndex)
	for _, m := range s.Transcript {
		assert.NotEqual(t, "second", m.Text)
	}
}

func TestEngine_ResetDuringExtractionDropsResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	extractor.EXPECT().
		Extract(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, step StepID, answer string, current notes.Fields) (notes.Fields, error) {
			close(started)
			<-release
			next := notes.Clone(current)
			next.Destination = "late"
			return next, nil
		})

	e := New(extractor, notes.Empty())
	done := make(chan error, 1)
	go func() {
		done <- e.SubmitAnswer(context.Background(), "answer")
	}()
	<-started

	e.Reset(nil)
	close(release)
	assert.ErrorIs(t, <-done, ErrReset)

	s := e.State()
	assert.Equal(t, 0, s.StepIndex)
	assert.Empty(t, s.Fields.Destination)
	require.Len(t, s.Transcript, 1)
}

func TestEngine_Reset(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ StepID, answer string, current notes.Fields) (notes.Fields, error) {
			next := notes.Clone(current)
			next.Destination = answer
			return next, nil
		}).
		Times(2)

	initial := notes.Empty()
	initial.Memo = "初期"
	e := New(extractor, initial)

	require.NoError(t, e.SubmitAnswer(context.Background(), "まごめ園"))
	e.Reset(nil)
	s := e.State()
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, "初期", s.Fields.Memo)
	assert.Empty(t, s.Fields.Destination)
	assert.Empty(t, s.Summary)
	require.Len(t, s.Transcript, 1)

	require.NoError(t, e.SubmitAnswer(context.Background(), "自宅"))
	kept := e.State().Fields
	e.Reset(&kept)
	s = e.State()
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, "自宅", s.Fields.Destination)
}

func TestEngine_CustomSteps(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), StepMemo, "ok", gomock.Any()).DoAndReturn(echo)

	e := New(extractor, notes.Empty(), WithSteps([]Step{{ID: StepMemo, Prompt: "メモ"}}))
	require.NoError(t, e.SubmitAnswer(context.Background(), "ok"))
	assert.True(t, e.State().Finished)
}

func TestEngines_AreIndependent(t *testing.T) {
	ctrl := gomock.NewController(t)
	extractor := NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(echo)

	a := New(extractor, notes.Empty())
	b := New(extractor, notes.Empty())
	require.NoError(t, a.SubmitAnswer(context.Background(), "x"))

	assert.Equal(t, 1, a.State().StepIndex)
	assert.Equal(t, 0, b.State().StepIndex)
}
