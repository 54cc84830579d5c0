package coach

import (
	"context"
	"fmt"

	"github.com/fitstack/coach/pkg/models"
)

// IntentClassifier maps a free-text message to one of the candidate labels.
// Implemented by the low-latency provider model; mocked in tests.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, message string, candidates []string) (label string, confidence float64, err error)
}

// KindClassifier wraps an IntentClassifier and resolves agent kinds.
type KindClassifier struct {
	classifier IntentClassifier
}

// NewKindClassifier creates a classifier over the given intent model.
func NewKindClassifier(classifier IntentClassifier) *KindClassifier {
	return &KindClassifier{classifier: classifier}
}

// candidateKinds returns the kinds classification may choose between. The
// null kind is never classified into; it is reachable by explicit request only.
func candidateKinds() []string {
	kinds := make([]string, 0, len(models.AllAgentKinds())-1)
	for _, k := range models.AllAgentKinds() {
		if k == models.KindNull {
			continue
		}
		kinds = append(kinds, string(k))
	}
	return kinds
}

// Classify resolves the agent kind for a message. A model answer outside the
// closed set is a provider-side failure, not a routing decision.
func (c *KindClassifier) Classify(ctx context.Context, message string) (models.AgentKind, error) {
	label, _, err := c.classifier.ClassifyIntent(ctx, message, candidateKinds())
	if err != nil {
		return "", &ClassificationError{Message: message, Err: err}
	}
	kind, err := models.ParseAgentKind(label)
	if err != nil || kind == models.KindNull {
		return "", &ClassificationError{
			Message: message,
			Err:     fmt.Errorf("model returned label %q outside the agent kind set", label),
		}
	}
	return kind, nil
}
