package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/abhisek/boardprep/internal/question"
	"github.com/abhisek/boardprep/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepNamesRoundTrip(t *testing.T) {
	for _, s := range AllSteps() {
		got, err := ParseStep(s.String())
		require.NoError(t, err, s.String())
		assert.Equal(t, s, got)

		b, err := json.Marshal(s)
		require.NoError(t, err)
		var back Step
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, s, back)
	}

	_, err := ParseStep("incorrect-9")
	assert.True(t, errors.Is(err, ErrUnknownStep))
	_, err = json.Marshal(StepUnknown)
	assert.Error(t, err)
}

func TestTrackFixedByChoice(t *testing.T) {
	q := testQuestion()
	assert.Equal(t, TrackCorrect, TrackFor(q, question.LabelC))
	assert.Equal(t, TrackIncorrect, TrackFor(q, question.LabelB))
	assert.Equal(t, StepCorrect1, TrackCorrect.Entry())
	assert.Equal(t, StepIncorrect1, TrackIncorrect.Entry())
	assert.Equal(t, StepCorrectComplete, TrackCorrect.Complete())
}

func TestEntrySteps(t *testing.T) {
	v := validator()
	r := NewRegistry(v)
	ctx := context.Background()

	for step, next := range map[Step]Step{StepIncorrect1: StepIncorrect1Check, StepCorrect1: StepCorrect1Check} {
		out, err := r.Resolve(ctx, step, testQuestion(), question.LabelB, &transcript.Transcript{})
		require.NoError(t, err)
		assert.False(t, out.Prompt)
		assert.Equal(t, ExplainPrompt, out.Message)
		assert.Equal(t, []transcript.Tag{transcript.TagStudentExplanation}, out.NextUserTags)
		assert.Equal(t, next, out.Next)
	}
	assert.Empty(t, v.calls, "entry steps never validate")
}

func explained(text string) *transcript.Transcript {
	return transcript.New(
		transcript.NewMessage(transcript.RoleAssistant, ExplainPrompt),
		transcript.NewMessage(transcript.RoleUser, text, transcript.TagStudentExplanation),
	)
}

// A wrong pick is taught, then asked to restate the answer in the student's own words.
func TestIncorrectTrackWalkthrough(t *testing.T) {
	q := testQuestion()
	v := validator(yes, no)
	r := NewRegistry(v)
	ctx := context.Background()

	tr := explained("The peaked T waves made me think of shifting potassium into cells")
	out, err := r.Resolve(ctx, StepIncorrect1Check, q, question.LabelB, tr)
	require.NoError(t, err)
	assert.True(t, out.Prompt)
	assert.Equal(t, StepIncorrect3Check, out.Next)
	assert.Contains(t, out.Message, "shifting potassium into cells")
	assert.Contains(t, out.Message, "(B) Insulin with glucose")
	assert.Contains(t, out.Message, "(C) Calcium gluconate")

	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "...teaching..."))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "because"))

	out, err = r.Resolve(ctx, StepIncorrect3Check, q, question.LabelB, tr)
	require.NoError(t, err)
	assert.False(t, out.Prompt)
	assert.Equal(t, StepIncorrect3Check, out.Next)
	assert.Contains(t, out.Message, "(C)")
	assert.Contains(t, out.Message, "(B)")
	assert.Empty(t, out.Error)

	require.Len(t, v.calls, 2)
	assert.Equal(t, OwnWordsQuestion(q, question.LabelB), v.calls[1].Input)
}

func TestIncorrectTrackGateOrder(t *testing.T) {
	q := testQuestion()
	v := validator(no, yes, no, yes)
	r := NewRegistry(v)
	ctx := context.Background()
	tr := explained("not sure")

	step := StepIncorrect1
	var visited []Step
	for range 6 {
		out, err := r.Resolve(ctx, step, q, question.LabelB, tr)
		require.NoError(t, err)
		visited = append(visited, out.Next)
		step = out.Next
		if step == StepFollowUpMenu {
			assert.Equal(t, IncorrectClosingMessage, out.Message)
			assert.False(t, out.Prompt)
			break
		}
	}

	assert.Equal(t, []Step{
		StepIncorrect1Check,
		StepIncorrect1Check, // invalid explanation loops
		StepIncorrect3Check,
		StepIncorrect3Check, // invalid own-words answer loops
		StepFollowUpMenu,
	}, visited)
	assert.Equal(t, []string{"explanation", "explanation", "integration", "integration"}, v.kinds())
}

// A right pick goes through integration, expert modelling and next step before the menu.
func TestCorrectTrackWalkthrough(t *testing.T) {
	q := testQuestion()
	v := validator(yes, yes, yes, yes)
	r := NewRegistry(v)
	ctx := context.Background()
	tr := explained("Peaked T waves mean the myocardium needs protecting first")

	out, err := r.Resolve(ctx, StepCorrect1Check, q, question.LabelC, tr)
	require.NoError(t, err)
	assert.True(t, out.Prompt)
	assert.Equal(t, StepCorrect3Check, out.Next)
	assert.Equal(t, []transcript.Tag{transcript.TagIntegrationQuestion}, out.Tags)

	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What if the patient were on digoxin?", out.Tags...))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "Calcium could precipitate toxicity"))

	out, err = r.Resolve(ctx, StepCorrect3Check, q, question.LabelC, tr)
	require.NoError(t, err)
	assert.True(t, out.Prompt)
	assert.Equal(t, StepCorrect4Check, out.Next)

	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "An expert would... Does that make sense?"))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "Yes, that makes sense"))

	out, err = r.Resolve(ctx, StepCorrect4Check, q, question.LabelC, tr)
	require.NoError(t, err)
	assert.True(t, out.Prompt)
	assert.Equal(t, StepCorrect5Check, out.Next)

	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What would you do next?"))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "Give insulin and glucose, then arrange dialysis"))

	out, err = r.Resolve(ctx, StepCorrect5Check, q, question.LabelC, tr)
	require.NoError(t, err)
	assert.False(t, out.Prompt)
	assert.Equal(t, StepFollowUpMenu, out.Next)
	assert.Equal(t, GoodWorkMessage, out.Message)

	assert.Equal(t, []string{"explanation", "integration", "satisfaction", "next-step"}, v.kinds())
	assert.Equal(t, "What if the patient were on digoxin?", v.calls[1].Input)
}

func TestCorrectTrackInvalidLoopsWithoutMutation(t *testing.T) {
	q := testQuestion()
	ctx := context.Background()

	tr := explained("protect the heart")
	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What if the patient were on digoxin?", transcript.TagIntegrationQuestion))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "no idea"))

	for _, step := range []Step{StepCorrect3Check, StepCorrect4Check, StepCorrect5Check} {
		before := tr.Messages()
		out, err := NewRegistry(validator(no)).Resolve(ctx, step, q, question.LabelC, tr)
		require.NoError(t, err, step.String())
		assert.Equal(t, step, out.Next, step.String())
		assert.True(t, out.Prompt, "%s re-teaches through the model", step)
		assert.Empty(t, out.Error)
		assert.Equal(t, before, tr.Messages(), "%s must not touch the transcript", step)
	}
}

func TestExpertModelBuildsOnStudentAnswer(t *testing.T) {
	tr := explained("protect the heart")
	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What if the patient were on digoxin?", transcript.TagIntegrationQuestion))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "Calcium could precipitate digoxin toxicity"))

	out, err := NewRegistry(validator(yes)).Resolve(context.Background(), StepCorrect3Check, testQuestion(), question.LabelC, tr)
	require.NoError(t, err)
	assert.Equal(t, StepCorrect4Check, out.Next)
	assert.True(t, out.Prompt)
	assert.Contains(t, out.Message, "What if the patient were on digoxin?")
	assert.Contains(t, out.Message, "Calcium could precipitate digoxin toxicity")
}

func TestIntegrationRetryKeepsQuestionTagged(t *testing.T) {
	tr := explained("protect the heart")
	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What if the patient were on digoxin?", transcript.TagIntegrationQuestion))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "no idea"))

	out, err := NewRegistry(validator(no)).Resolve(context.Background(), StepCorrect3Check, testQuestion(), question.LabelC, tr)
	require.NoError(t, err)
	assert.Equal(t, []transcript.Tag{transcript.TagIntegrationQuestion}, out.Tags)
	assert.Contains(t, out.Message, "What if the patient were on digoxin?")
}

// A validator outage keeps the student on the same step with a retry message.
func TestValidatorUnavailable(t *testing.T) {
	q := testQuestion()
	ctx := context.Background()
	tr := explained("the ECG")
	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What if...?", transcript.TagIntegrationQuestion))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "answer"))

	tests := []struct {
		step   Step
		chosen question.Label
		prompt bool
	}{
		{StepIncorrect1Check, question.LabelB, false},
		{StepCorrect1Check, question.LabelC, false},
		{StepIncorrect3Check, question.LabelB, false},
		{StepCorrect3Check, question.LabelC, true},
		{StepCorrect4Check, question.LabelC, true},
		{StepCorrect5Check, question.LabelC, true},
	}
	for _, tt := range tests {
		out, err := NewRegistry(validator(unavailable)).Resolve(ctx, tt.step, q, tt.chosen, tr)
		require.NoError(t, err, tt.step.String())
		assert.Equal(t, "Validation service unavailable. Please try again.", out.Error, tt.step.String())
		assert.Equal(t, out.Error, out.Message)
		assert.Equal(t, tt.step, out.Next, tt.step.String())
		assert.Equal(t, tt.prompt, out.Prompt, tt.step.String())
	}
}

// Each follow-up option elaborates its own template and returns to the menu.
func TestFollowUpSteps(t *testing.T) {
	q := testQuestion()
	r := NewRegistry(validator())
	ctx := context.Background()
	tr := explained("x")

	out, err := r.Resolve(ctx, StepFollowUpMenu, q, question.LabelC, tr)
	require.NoError(t, err)
	assert.Equal(t, MenuMessage, out.Message)
	assert.False(t, out.Prompt)
	assert.Equal(t, StepFollowUpMenu, out.Next)

	seen := map[string]bool{}
	for _, step := range []Step{StepFollowUpChallenge, StepFollowUpSchema, StepFollowUpSystems, StepFollowUpIntegration} {
		out, err := r.Resolve(ctx, step, q, question.LabelC, tr)
		require.NoError(t, err)
		assert.True(t, out.Prompt, step.String())
		assert.Equal(t, StepFollowUpMenu, out.Next, step.String())
		assert.False(t, seen[out.Message], "%s template must be distinct", step)
		seen[out.Message] = true
	}
}

func TestTerminalStepsSelfLoop(t *testing.T) {
	r := NewRegistry(validator())
	for _, step := range []Step{StepIncorrectComplete, StepCorrectComplete} {
		out, err := r.Resolve(context.Background(), step, testQuestion(), question.LabelB, &transcript.Transcript{})
		require.NoError(t, err)
		assert.True(t, out.Done)
		assert.Equal(t, step, out.Next)
		assert.Equal(t, CompleteMessage, out.Message)
	}
}

func TestResolveFaults(t *testing.T) {
	r := NewRegistry(validator())
	ctx := context.Background()
	q := testQuestion()

	for _, step := range []Step{StepIncorrect2Check, StepCorrect2Check} {
		_, err := r.Resolve(ctx, step, q, question.LabelB, explained("x"))
		assert.True(t, errors.Is(err, ErrUnreachableStep), step.String())
	}

	_, err := r.Resolve(ctx, Step(99), q, question.LabelB, explained("x"))
	assert.True(t, errors.Is(err, ErrUnknownStep))

	onlyAssistant := transcript.New(transcript.NewMessage(transcript.RoleAssistant, ExplainPrompt))
	for _, step := range []Step{StepIncorrect1Check, StepCorrect1Check, StepIncorrect3Check, StepCorrect4Check, StepCorrect5Check} {
		_, err := r.Resolve(ctx, step, q, question.LabelB, onlyAssistant)
		assert.True(t, errors.Is(err, transcript.ErrNoMessage), step.String())
	}

	// The integration gate needs the tagged question, not just a reply.
	_, err = r.Resolve(ctx, StepCorrect3Check, q, question.LabelC, explained("x"))
	assert.True(t, errors.Is(err, transcript.ErrNoMessage))
}

func TestResolveIsIdempotent(t *testing.T) {
	q := testQuestion()
	ctx := context.Background()
	tr := explained("peaked T waves")
	tr.Append(transcript.NewMessage(transcript.RoleAssistant, "What if...?", transcript.TagIntegrationQuestion))
	tr.Append(transcript.NewMessage(transcript.RoleUser, "answer"))

	for _, step := range AllSteps() {
		for _, verdictFor := range []func() *scriptedValidator{
			func() *scriptedValidator { return validator(yes) },
			func() *scriptedValidator { return validator(no) },
			func() *scriptedValidator { return validator(unavailable) },
		} {
			a, errA := NewRegistry(verdictFor()).Resolve(ctx, step, q, question.LabelC, tr)
			b, errB := NewRegistry(verdictFor()).Resolve(ctx, step, q, question.LabelC, tr)
			assert.Equal(t, errA, errB, step.String())
			assert.Equal(t, a, b, step.String())
		}
	}
}
