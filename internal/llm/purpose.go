package llm

import "context"

// Purpose labels a model call in the audit log and in traces.
type Purpose string

const (
	PurposeUnknown Purpose = "unknown"

	PurposeChat           Purpose = "chat"
	PurposeChatSummary    Purpose = "chat-summary"
	PurposeReviewQuestion Purpose = "review-question"

	PurposeValidateExplanation  Purpose = "validate-explanation"
	PurposeValidateSatisfaction Purpose = "validate-satisfaction"
	PurposeValidateIntegration  Purpose = "validate-integration"
	PurposeValidateNextStep     Purpose = "validate-next-step"
)

// TutorPurpose labels the elaboration made at a tutoring step, e.g.
// "tutor-incorrect-1-check".
func TutorPurpose(step string) Purpose {
	return Purpose("tutor-" + step)
}

type purposeKey struct{}

// WithPurpose attaches p to ctx. Providers wrapped by NewProvider record it.
func WithPurpose(ctx context.Context, p Purpose) context.Context {
	return context.WithValue(ctx, purposeKey{}, p)
}

// PurposeFrom returns the purpose attached to ctx, or PurposeUnknown.
func PurposeFrom(ctx context.Context) Purpose {
	if p, ok := ctx.Value(purposeKey{}).(Purpose); ok && p != "" {
		return p
	}
	return PurposeUnknown
}
