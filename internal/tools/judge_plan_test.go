package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func planRequest(taskID string, urls []interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"task_id":       taskID,
		"plan":          "stream rows, batch inserts",
		"design":        "reader, validator, batch writer",
		"research":      "compared csv libraries",
		"research_urls": urls,
	}
	return req
}

var threeURLs = []interface{}{
	"https://example.com/a", "https://example.com/b", "https://example.com/c",
}

func TestJudgePlan_ApprovedAdvancesToPlanApproved(t *testing.T) {
	e := setupEnv(t, judgingCaller(approvedJSON, adequateResearchJSON))
	taskID := createTask(t, e)
	tool := NewJudgePlanTool(e.tasks, e.history, e.evaluator, e.engine)

	result, err := tool.Handle(context.Background(), planRequest(taskID, threeURLs))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("unexpected error result: %s", getResultText(result))
	}

	var resp verdictResponse
	if err := json.Unmarshal([]byte(getResultText(result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if !resp.Verdict.Approved {
		t.Fatalf("verdict = %+v, want approved", resp.Verdict)
	}
	if resp.Task.State != "plan_approved" {
		t.Errorf("State = %s, want plan_approved", resp.Task.State)
	}

	// The state change is persisted.
	loaded, err := e.tasks.Load(taskID)
	if err != nil || loaded == nil {
		t.Fatalf("Load: %v, %v", loaded, err)
	}
	if loaded.State != "plan_approved" {
		t.Errorf("persisted State = %s, want plan_approved", loaded.State)
	}
}

func TestJudgePlan_FewerThanThreeURLsRejectedWithoutLLM(t *testing.T) {
	// The scripted judge would approve, so a rejection proves the URL
	// gate fired before any evaluation.
	e := setupEnv(t, judgingCaller(approvedJSON, adequateResearchJSON))
	taskID := createTask(t, e)

	tool := NewJudgePlanTool(e.tasks, e.history, e.evaluator, e.engine)
	result, err := tool.Handle(context.Background(),
		planRequest(taskID, []interface{}{"https://example.com/a"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var resp verdictResponse
	if err := json.Unmarshal([]byte(getResultText(result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Verdict.Approved {
		t.Error("plan with 1 URL should be rejected")
	}
	if len(resp.Verdict.RequiredImprovements) == 0 {
		t.Error("rejection should list required improvements")
	}
	if resp.Task.State == "plan_approved" {
		t.Error("rejected plan must not advance the state")
	}
}

func TestJudgePlan_RejectedVerdictKeepsState(t *testing.T) {
	e := setupEnv(t, judgingCaller(rejectedJSON, adequateResearchJSON))
	taskID := createTask(t, e)
	tool := NewJudgePlanTool(e.tasks, e.history, e.evaluator, e.engine)

	result, err := tool.Handle(context.Background(), planRequest(taskID, threeURLs))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var resp verdictResponse
	if err := json.Unmarshal([]byte(getResultText(result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Verdict.Approved {
		t.Error("verdict should be rejected")
	}
	if resp.Task.State != "created" {
		t.Errorf("State = %s, want created", resp.Task.State)
	}
}

func TestJudgePlan_InadequateResearchOverridesApproval(t *testing.T) {
	inadequate := `{"research_adequate": false, "design_based_on_research": false, "issues": ["no prior art"], "feedback": "shallow"}`
	e := setupEnv(t, judgingCaller(approvedJSON, inadequate))
	taskID := createTask(t, e)
	tool := NewJudgePlanTool(e.tasks, e.history, e.evaluator, e.engine)

	result, err := tool.Handle(context.Background(), planRequest(taskID, threeURLs))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var resp verdictResponse
	if err := json.Unmarshal([]byte(getResultText(result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Verdict.Approved {
		t.Error("inadequate research must override the approval")
	}
	if resp.Task.State == "plan_approved" {
		t.Error("overridden approval must not advance the state")
	}
}

func TestJudgePlan_UnknownTaskFails(t *testing.T) {
	e := setupEnv(t, scripted(guidanceJSON))
	tool := NewJudgePlanTool(e.tasks, e.history, e.evaluator, e.engine)

	result, err := tool.Handle(context.Background(), planRequest("ghost", threeURLs))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("unknown task should produce an error result")
	}
}

func TestJudgePlan_LLMFailureDegradesToRejection(t *testing.T) {
	e := setupEnv(t, failingCaller("sampling unavailable"))
	taskID := createTask(t, e)
	tool := NewJudgePlanTool(e.tasks, e.history, e.evaluator, e.engine)

	result, err := tool.Handle(context.Background(), planRequest(taskID, threeURLs))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("LLM failure should degrade, not error: %s", getResultText(result))
	}

	var resp verdictResponse
	if err := json.Unmarshal([]byte(getResultText(result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Verdict.Approved {
		t.Error("degraded verdict should be a rejection")
	}
	if resp.Guidance.NextTool != nil {
		t.Error("guidance should be the fallback")
	}
}
