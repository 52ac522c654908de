package tutor

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/abhisek/boardprep/internal/question"
)

// Fixed messages shown verbatim.
const (
	ExplainPrompt = "Before we go over the answer, walk me through your reasoning. " +
		"What finding in the question stem made you choose that answer?"

	ClarifyPrompt = "I want to make sure I follow your thinking. " +
		"Which specific detail in the vignette pointed you toward your answer?"

	MenuMessage = "What would you like to do next?\n" +
		"1. Challenge: a harder version of this case\n" +
		"2. Schema: quiz yourself on the diagnostic framework\n" +
		"3. Systems: compare this disease across organ systems\n" +
		"4. Integration: rework a modified scenario\n" +
		"Reply with a number, or type \"done\" to finish."

	IncorrectClosingMessage = "That's it. You can now explain both why the right answer works " +
		"and why your original pick falls short, which is exactly what the exam tests.\n\n" + MenuMessage

	GoodWorkMessage = "Good work! You reasoned through the case, integrated it with a new scenario " +
		"and picked a sound next step like an expert would.\n\n" + MenuMessage

	CompleteMessage = "Nice session. This conversation is complete; move on to the next question when you're ready."

	SomethingWentWrong = "Something went wrong. Please try again."

	ApologyMessage = "Sorry, I'm having trouble responding right now. Please send your answer again."
)

// personaPreamble is the system prompt for every elaboration.
const personaPreamble = `You are an experienced USMLE tutor coaching a medical student one question at a time.
Be warm, concise and Socratic. Use clinical language the exam uses, bold key findings with **asterisks**, and never reveal more than the instruction asks.
Write directly to the student. The text you receive is your instruction for this turn; follow it exactly and end with any question it tells you to ask.`

// promptData is the template context for every tutoring template.
type promptData struct {
	Stem               string
	Chosen             string
	ChosenText         string
	ChosenExplanation  string
	Correct            string
	CorrectText        string
	CorrectExplanation string
	Choices            []choiceLine
	Explanation        string
	Previous           string
	Answer             string
}

type choiceLine struct {
	Label string
	Text  string
}

func newPromptData(q *question.Question, chosen question.Label) promptData {
	d := promptData{
		Stem:               q.Stem,
		Chosen:             chosen.Upper(),
		ChosenText:         q.Choice(chosen).Text,
		ChosenExplanation:  q.Choice(chosen).Explanation,
		Correct:            q.Answer.Upper(),
		CorrectText:        q.Choice(q.Answer).Text,
		CorrectExplanation: q.Choice(q.Answer).Explanation,
	}
	for _, l := range question.Labels {
		d.Choices = append(d.Choices, choiceLine{Label: l.Upper(), Text: q.Choice(l).Text})
	}
	return d
}

// OwnWordsQuestion is the challenge posed at the end of the incorrect
// track's teaching turn.
func OwnWordsQuestion(q *question.Question, chosen question.Label) string {
	return fmt.Sprintf("In your own words, why is (%s) the correct answer and why is (%s) wrong?",
		q.Answer.Upper(), chosen.Upper())
}

// OwnWordsReprompt is shown when the student's own-words explanation
// falls short.
func OwnWordsReprompt(q *question.Question, chosen question.Label) string {
	return fmt.Sprintf("Not quite yet. Try again: explain in your own words why (%s) %s is correct, "+
		"and what makes (%s) %s the wrong choice here.",
		q.Answer.Upper(), q.Choice(q.Answer).Text, chosen.Upper(), q.Choice(chosen).Text)
}

const caseBlock = `Question stem:
{{.Stem}}

Choices:
{{range .Choices}}({{.Label}}) {{.Text}}
{{end}}`

func mustTemplate(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(caseBlock + "\n" + body))
}

var teachIncorrectTemplate = mustTemplate("teach-incorrect", `The student chose ({{.Chosen}}) {{.ChosenText}}. The correct answer is ({{.Correct}}) {{.CorrectText}}.
Why the correct answer is right: {{.CorrectExplanation}}
Why the student's choice is wrong: {{.ChosenExplanation}}

The student explained their choice like this:
"{{.Explanation}}"

Acknowledge what is reasonable in their explanation, then teach the key discriminating finding that makes ({{.Correct}}) correct and ({{.Chosen}}) incorrect. Keep it under 150 words.
End by asking exactly: "In your own words, why is ({{.Correct}}) the correct answer and why is ({{.Chosen}}) wrong?"`)

var teachCorrectTemplate = mustTemplate("teach-correct", `The student correctly chose ({{.Correct}}) {{.CorrectText}}.
Why it is right: {{.CorrectExplanation}}

The student explained their choice like this:
"{{.Explanation}}"

Confirm what is strong in their reasoning and add the one mechanism a top scorer would also mention. Keep it under 120 words.
Then pose one integration question: change a single detail of the vignette and ask how the diagnosis or management would change. End with that question.`)

var integrationRetryTemplate = mustTemplate("integration-retry", `You asked the student this integration question:
"{{.Previous}}"

Their answer missed the point. Without giving the answer away, offer one hint that points at the relevant mechanism, then ask the same integration question again in slightly different words.`)

var expertModelTemplate = mustTemplate("expert-model", `You asked the student this integration question:
"{{.Previous}}"

They answered:
"{{.Answer}}"

Build on what they got right, then model how an expert would reason through that question step by step in under 120 words, connecting it back to the original vignette.
End by asking: "Does that reasoning make sense to you?"`)

var expertRetryTemplate = mustTemplate("expert-retry", `The student is not yet satisfied with your expert explanation of this question:
"{{.Previous}}"

Explain the same reasoning from a different angle, using a simple analogy or a short table, in under 120 words.
End by asking whether it makes sense now.`)

var nextStepTemplate = mustTemplate("next-step", `The student now understands the diagnosis.
Ask them what they would do next clinically for this patient: the next best step in management or diagnosis. Add one sentence of context about why the exam loves this question. Do not give the answer.`)

var nextStepRetryTemplate = mustTemplate("next-step-retry", `You asked the student for the next clinical step for this patient. Their answer was not appropriate.
Briefly explain what the priorities are in this situation without naming the exact answer, then ask again what they would do next.`)

var challengeTemplate = mustTemplate("follow-up-challenge", `Write a "nightmare mode" version of this case: a harder vignette testing the same concept with a misleading distractor finding and five new answer choices (A-E).
Do not reveal the answer. Ask the student to pick one and explain why.`)

var schemaTemplate = mustTemplate("follow-up-schema", `Quiz the student on the diagnostic framework behind this question. Present the framework as a short decision tree with two blanks for the student to fill in, then ask them to fill in the blanks.`)

var systemsTemplate = mustTemplate("follow-up-systems", `Compare how the core disease process in this question shows up across two other organ systems in a compact three-row table.
Finish with one question asking the student which presentation would be most likely on the exam and why.`)

var integrationTemplate = mustTemplate("follow-up-integration", `Modify this scenario: change the patient's age, a comorbidity, or one lab value so that the best answer changes.
Present the modified vignette and ask the student what the new best answer is and why.`)

func render(t *template.Template, d promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
