package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowCounter(t *testing.T) {
	before := testutil.ToFloat64(workflowTotal.WithLabelValues("enroll", "already_enrolled"))
	Workflow("enroll", "already_enrolled")
	after := testutil.ToFloat64(workflowTotal.WithLabelValues("enroll", "already_enrolled"))
	if after != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, after)
	}
}

func TestValidationLabels(t *testing.T) {
	Validation("scope", false)
	if got := testutil.ToFloat64(validationTotal.WithLabelValues("scope", "invalid")); got < 1 {
		t.Fatalf("expected invalid scope validation to be counted, got %v", got)
	}
}
