package temporal

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
)

// Status reports a run's current Temporal execution status, used by
// channel adapters that poll long-running voice/chat sessions for
// progress rather than blocking on Wait.
func (e *eng) Status(ctx context.Context, runID string) (enumspb.WorkflowExecutionStatus, error) {
	resp, err := e.client.DescribeWorkflowExecution(ctx, runID, "")
	if err != nil {
		return enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED, fmt.Errorf("temporal engine: describe workflow: %w", err)
	}
	return resp.WorkflowExecutionInfo.GetStatus(), nil
}
