// Package generator asks the model for a set of coding problems and validates
// every one of them before a match may use it.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/gosimple/slug"

	"leetclash/internal/common"
	"leetclash/internal/domain/model"
	"leetclash/internal/platform/llm"
)

const (
	generationTemperature = 0.7
	MaxProblems           = 10
)

var (
	ErrGeneration = fmt.Errorf("failed to generate the set of problems, please try again: %w", common.ErrServiceUnavailable)
	ErrInvalidSet = fmt.Errorf("invalid problem set request: %w", common.ErrValidation)
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Generator interface {
	Generate(ctx context.Context, count int, difficulty model.ProblemDifficulty) ([]model.Problem, error)
	GenerateFromIdeas(ctx context.Context, ideas []string, difficulty model.ProblemDifficulty) ([]model.Problem, error)
}

type LLMGenerator struct {
	client llm.Client
}

func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

var problemSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"id":          map[string]any{"type": "STRING", "description": "A concise, snake_case Python function name from the problem title."},
		"description": map[string]any{"type": "STRING", "description": "A one-sentence summary of the problem's goal."},
		"tests": map[string]any{"type": "STRING", "description": "A valid JSON string representing an array of 3-5 test cases. Each object in the array MUST have 'inputs' (an array of arguments) and 'expected' (the return value). " +
			`Example: '[{"inputs": [[1,2,3], 5], "expected": true}, {"inputs": [[4,5], 2], "expected": false}]'`},
		"complexity": map[string]any{"type": "STRING", "description": "The estimated optimal time complexity (e.g., 'O(n)')."},
		"template":   map[string]any{"type": "STRING", "description": "A basic Python function template with the generated id as the function name."},
	},
	"required": []string{"id", "description", "tests", "complexity", "template"},
}

var problemSetSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"problems": map[string]any{"type": "ARRAY", "items": problemSchema},
	},
	"required": []string{"problems"},
}

const fieldInstructions = `- For each problem, provide the following fields:
    1. **id**: A concise, snake_case Python function name (e.g., "two_sum").
    2. **description**: A one-sentence summary of the problem's goal.
    3. **tests**: A JSON STRING representing an array of 3-5 diverse and accurate test cases. Each object must have 'inputs' (an array) and 'expected' (the output).
    4. **complexity**: The expected optimal time complexity (e.g., "O(n)").
    5. **template**: A basic Python function template with the generated 'id' as the name, correct parameters, and a 'pass' statement.

Your response MUST be a single, valid JSON object matching the provided schema, containing a 'problems' array. Do not include any other text, comments, or markdown formatting.
`

func (g *LLMGenerator) Generate(ctx context.Context, count int, difficulty model.ProblemDifficulty) ([]model.Problem, error) {
	if count < 1 || count > MaxProblems {
		return nil, fmt.Errorf("count must be between 1 and %d: %w", MaxProblems, ErrInvalidSet)
	}
	if !difficulty.Valid() {
		return nil, fmt.Errorf("unknown difficulty %q: %w", difficulty, ErrInvalidSet)
	}

	var b strings.Builder
	b.WriteString("You are an expert programmer and problem designer with extensive knowledge of LeetCode.\n")
	b.WriteString("Your task is to generate a structured JSON object containing a list of LeetCode-style programming challenges.\n\n")
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "- Generate exactly %d unique problems.\n", count)
	fmt.Fprintf(&b, "- All problems must be of %q difficulty.\n", difficulty)
	b.WriteString("- The problems should be varied and represent common algorithm/data structure topics.\n")
	b.WriteString(fieldInstructions)

	return g.run(ctx, b.String())
}

func (g *LLMGenerator) GenerateFromIdeas(ctx context.Context, ideas []string, difficulty model.ProblemDifficulty) ([]model.Problem, error) {
	var cleaned []string
	for _, idea := range ideas {
		if idea = strings.TrimSpace(idea); idea != "" {
			cleaned = append(cleaned, idea)
		}
	}
	if len(cleaned) == 0 || len(cleaned) > MaxProblems {
		return nil, fmt.Errorf("between 1 and %d ideas are required: %w", MaxProblems, ErrInvalidSet)
	}
	if !difficulty.Valid() {
		return nil, fmt.Errorf("unknown difficulty %q: %w", difficulty, ErrInvalidSet)
	}

	var b strings.Builder
	b.WriteString("You are an expert programmer and problem designer with extensive knowledge of LeetCode.\n")
	b.WriteString("Your task is to generate a structured JSON object containing a list of LeetCode-style programming challenges based on user-provided ideas.\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- Generate one problem for each of the following ideas:\n")
	for _, idea := range cleaned {
		fmt.Fprintf(&b, "    - %s\n", idea)
	}
	fmt.Fprintf(&b, "- All generated problems must be of %q difficulty.\n", difficulty)
	b.WriteString(fieldInstructions)

	return g.run(ctx, b.String())
}

func (g *LLMGenerator) run(ctx context.Context, prompt string) ([]model.Problem, error) {
	text, err := g.client.GenerateJSON(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: generationTemperature,
		Schema:      problemSetSchema,
	})
	if err != nil {
		log.Printf("ERROR: problem generation call failed: %v", err)
		return nil, ErrGeneration
	}
	problems, err := ParseProblems(text)
	if err != nil {
		log.Printf("ERROR: problem generation returned an unusable set: %v", err)
		return nil, ErrGeneration
	}
	return problems, nil
}

type rawProblem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Tests       string `json:"tests"`
	Complexity  string `json:"complexity"`
	Template    string `json:"template"`
}

type rawTest struct {
	Inputs   *[]json.RawMessage `json:"inputs"`
	Expected json.RawMessage    `json:"expected"`
}

// ParseProblems validates a generated set. A single malformed problem rejects
// the whole set.
func ParseProblems(text string) ([]model.Problem, error) {
	var envelope struct {
		Problems []rawProblem `json:"problems"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &envelope); err != nil {
		return nil, fmt.Errorf("decode problem set: %w", err)
	}
	if len(envelope.Problems) == 0 {
		return nil, fmt.Errorf("generated data is missing the 'problems' array or is empty")
	}

	problems := make([]model.Problem, 0, len(envelope.Problems))
	for _, rp := range envelope.Problems {
		p, err := parseProblem(rp)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, nil
}

func parseProblem(rp rawProblem) (model.Problem, error) {
	if strings.TrimSpace(rp.ID) == "" || strings.TrimSpace(rp.Description) == "" || strings.TrimSpace(rp.Tests) == "" ||
		strings.TrimSpace(rp.Complexity) == "" || strings.TrimSpace(rp.Template) == "" {
		id := rp.ID
		if id == "" {
			id = "N/A"
		}
		return model.Problem{}, fmt.Errorf("a generated problem is missing required fields (problem id: %s)", id)
	}

	var raw []rawTest
	if err := json.Unmarshal([]byte(rp.Tests), &raw); err != nil {
		return model.Problem{}, fmt.Errorf("malformed test cases for problem %q: %w", rp.ID, err)
	}
	if len(raw) == 0 {
		return model.Problem{}, fmt.Errorf("problem %q has no test cases", rp.ID)
	}
	tests := make([]model.Test, len(raw))
	for i, t := range raw {
		if t.Inputs == nil || len(t.Expected) == 0 {
			return model.Problem{}, fmt.Errorf("a test case for problem %q is missing 'inputs' or 'expected'", rp.ID)
		}
		tests[i] = model.Test{Inputs: *t.Inputs, Expected: t.Expected}
	}

	id, template := normalizeID(strings.TrimSpace(rp.ID), rp.Template)
	return model.Problem{
		ID:          id,
		Description: strings.TrimSpace(rp.Description),
		Tests:       tests,
		Complexity:  strings.TrimSpace(rp.Complexity),
		Template:    template,
	}, nil
}

// normalizeID turns a title-like id into a snake_case function name and
// renames the function in the template to match.
func normalizeID(id, template string) (string, string) {
	if identifier.MatchString(id) {
		return id, template
	}
	normalized := strings.ReplaceAll(slug.Make(id), "-", "_")
	if normalized == "" {
		normalized = "solution"
	}
	if normalized[0] >= '0' && normalized[0] <= '9' {
		normalized = "fn_" + normalized
	}
	return normalized, strings.ReplaceAll(template, "def "+id+"(", "def "+normalized+"(")
}
