package grader

import "text/template"

const judgeSystemPrompt = `You grade short replies from a medical student preparing for the USMLE.
Answer with a single word: "yes" or "no". Do not explain.`

var explanationTemplate = template.Must(template.New("explanation").Parse(`Question stem:
{{.Stem}}

The student chose ({{.Label}}) {{.ChoiceText}} and was asked: "What finding in the stem made you choose this answer?"

Student reply:
{{.Reply}}

Is the reply topically related to the question and the chosen answer? It does not need to be correct. Answer yes or no.`))

var satisfactionTemplate = template.Must(template.New("satisfaction").Parse(`The student was asked whether an explanation made sense to them.

Student reply:
{{.Reply}}

Does the reply read as satisfied, affirmative or accepting? Answer yes or no.`))

var integrationTemplate = template.Must(template.New("integration").Parse(`The tutor asked the student:
{{.Question}}

Student reply:
{{.Reply}}

Is the reply a valid, on-topic answer to the tutor's question? Answer yes or no.`))

var nextStepTemplate = template.Must(template.New("next-step").Parse(`Clinical vignette:
{{.Stem}}

The student was asked: "What would you do next clinically for this patient?"

Student reply:
{{.Reply}}

Is the reply a clinically reasonable next step? Answer yes or no.`))
