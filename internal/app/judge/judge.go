// Package judge asks the model whether a submission passes its problem's
// tests. Check never fails: transport and parse problems become an API_ERROR
// verdict.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"leetclash/internal/domain/model"
	"leetclash/internal/platform/llm"
)

const apiErrorDetail = "Failed to communicate with the judging service. Please try again."

type Judge interface {
	Check(ctx context.Context, code string, problem model.Problem) model.JudgeResult
}

type LLMJudge struct {
	client  llm.Client
	timeout time.Duration
}

func NewLLMJudge(client llm.Client, timeout time.Duration) *LLMJudge {
	return &LLMJudge{client: client, timeout: timeout}
}

var verdictSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"success": map[string]any{"type": "BOOLEAN", "description": "Whether the code passed all tests."},
		"reason":  map[string]any{"type": "STRING", "description": "A short code for the outcome: 'PASSED', 'WRONG_ANSWER' or 'ERROR'."},
		"detail":  map[string]any{"type": "STRING", "description": "A detailed explanation of the failure or error, if any."},
	},
	"required": []string{"success", "reason"},
}

type promptTest struct {
	Inputs         []json.RawMessage `json:"inputs"`
	ExpectedOutput json.RawMessage   `json:"expected_output"`
}

func buildPrompt(code string, p model.Problem) (string, error) {
	tests := make([]promptTest, len(p.Tests))
	for i, t := range p.Tests {
		tests[i] = promptTest{Inputs: t.Inputs, ExpectedOutput: t.Expected}
	}
	formatted, err := json.MarshalIndent(tests, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a strict and precise code judge for a Python programming challenge.\n")
	b.WriteString("Your task is to evaluate a user-submitted Python function against a set of test cases.\n")
	b.WriteString("Do not provide hints or fix the code. Only report the outcome based on these instructions.\n\n")
	fmt.Fprintf(&b, "Problem:\n- Function Name: %s\n- Description: %s\n\n", p.ID, p.Description)
	fmt.Fprintf(&b, "User's Code:\n```python\n%s\n```\n\n", code)
	fmt.Fprintf(&b, "Test Cases:\n%s\n\n", formatted)
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "1. Check if the user's code defines a function with the correct name ('%s').\n", p.ID)
	b.WriteString("2. Execute the function against each test case.\n")
	b.WriteString("3. If the function is missing, or if there is a syntax error, your output must indicate an ERROR.\n")
	b.WriteString("4. If the function runs but fails any test case, your output must indicate WRONG_ANSWER and provide details on the first failing test.\n")
	b.WriteString("5. If the function passes ALL test cases, your output must indicate PASSED.\n\n")
	b.WriteString("Your response MUST be a valid JSON object matching the provided schema. Do not include any other text or markdown formatting.\n")
	return b.String(), nil
}

func (j *LLMJudge) Check(ctx context.Context, code string, problem model.Problem) model.JudgeResult {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	prompt, err := buildPrompt(code, problem)
	if err != nil {
		log.Printf("ERROR: building judge prompt for %s: %v", problem.ID, err)
		return apiError()
	}

	text, err := j.client.GenerateJSON(ctx, llm.Request{Prompt: prompt, Temperature: 0, Schema: verdictSchema})
	if err != nil {
		log.Printf("ERROR: judge call for %s failed: %v", problem.ID, err)
		return apiError()
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		log.Printf("ERROR: judge returned an unreadable verdict for %s: %v", problem.ID, err)
		return apiError()
	}
	return verdict
}

func parseVerdict(text string) (model.JudgeResult, error) {
	var raw struct {
		Success *bool  `json:"success"`
		Reason  string `json:"reason"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return model.JudgeResult{}, err
	}
	if raw.Success == nil {
		return model.JudgeResult{}, fmt.Errorf("verdict has no success field")
	}

	reason := model.VerdictReason(strings.ToUpper(strings.TrimSpace(raw.Reason)))
	switch {
	case *raw.Success:
		reason = model.ReasonPassed
	case reason != model.ReasonWrongAnswer && reason != model.ReasonError:
		reason = model.ReasonWrongAnswer
	}
	return model.JudgeResult{Success: *raw.Success, Reason: reason, Detail: raw.Detail}, nil
}

func apiError() model.JudgeResult {
	return model.JudgeResult{Success: false, Reason: model.ReasonAPIError, Detail: apiErrorDetail}
}
