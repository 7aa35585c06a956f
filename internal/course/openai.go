package course

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const systemRole = "You generate educational course structures in JSON and follow strict prompts. Every number must be respected strictly."

// OpenAIGenerator builds courses with the chat completions API.
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	sectionDelay time.Duration
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses the public API.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

// WithSectionDelay spaces out section requests to stay under provider rate limits.
func (g *OpenAIGenerator) WithSectionDelay(d time.Duration) *OpenAIGenerator {
	g.sectionDelay = d
	return g
}

// Generate fetches the plan, then each section in order. A failed section is
// returned with its Error set; a failed plan fails the whole request.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Course, error) {
	var plan Plan
	if err := g.completeJSON(ctx, planPrompt(req), &plan); err != nil {
		return nil, fmt.Errorf("failed to generate course plan: %w", err)
	}
	if len(plan.Sections) == 0 {
		return nil, fmt.Errorf("course plan has no sections")
	}

	course := &Course{Topic: plan.Title, Level: req.Level, Language: req.Language}
	for i, ps := range plan.Sections {
		if i > 0 && g.sectionDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.sectionDelay):
			}
		}
		log.Ctx(ctx).Debug().Int("section", i+1).Int("of", len(plan.Sections)).Str("title", ps.Title).Msg("Generating section")
		course.Sections = append(course.Sections, g.section(ctx, req, ps))
	}
	return course, nil
}

func (g *OpenAIGenerator) section(ctx context.Context, req Request, ps PlanSection) Section {
	if ps.BulletCount <= 0 {
		ps.BulletCount = 3
	}
	out := Section{PlanSection: ps, Content: []Content{}, Test: []Question{}}

	var body struct {
		Title   string     `json:"title"`
		Content []Content  `json:"content"`
		Test    []Question `json:"test"`
	}
	if err := g.completeJSON(ctx, sectionPrompt(req, ps), &body); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("title", ps.Title).Msg("Section generation failed")
		out.Error = "Failed to generate valid JSON."
		return out
	}

	if body.Title != "" {
		out.Title = body.Title
	}
	for i, c := range body.Content {
		c.ID, c.IsDone = i, false
		out.Content = append(out.Content, c)
	}
	for i, q := range body.Test {
		q.ID, q.IsDone = i, false
		out.Test = append(out.Test, q)
	}
	return out
}

func (g *OpenAIGenerator) completeJSON(ctx context.Context, prompt string, v any) error {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRole},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("empty completion")
	}
	return json.Unmarshal([]byte(StripFences(resp.Choices[0].Message.Content)), v)
}

// StripFences removes markdown code fences models like to wrap JSON in.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func planPrompt(req Request) string {
	return fmt.Sprintf(`You are a course structure designer for a mobile learning app.

Design a course on %q for a learner at level %d/10. The learner has %d minutes total and prefers to learn in %q language.

Course Structure Rules:
- %d sections
- Course title and section title must be in %q language
- Must start with an "Introduction" section
- Should progress from easier to harder topics
- Final section should be a "Summary" or "Review" of the course
- Allocate available time smartly across sections based on complexity
- Each section must include:
  - "title": a short clear section title
  - "complexity": from 1 (easy) to 5 (hard)
  - "availableTime": time allocated in minutes
  - "bulletCount": how many content blocks the section should include

Return a valid JSON object in this format:
{
  "title": "a one word title",
  "sections": [
    {"title": "Section Title", "complexity": 1, "availableTime": 5, "bulletCount": 3}
  ]
}`, req.Topic, req.Level, req.Time, req.Language, SectionCount(req.Time), req.Language)
}

func sectionPrompt(req Request, ps PlanSection) string {
	return fmt.Sprintf(`You are a mobile course content generator.

Create a section titled %q about %q for a level %d/10 learner in %q language with %d minutes available (50 words/min reading).

Instructions:
- The section must have %d words
- Generate exactly %d contents
- Each content has a "title" and 2 to 4 short paragraphs in a "bulletpoints" array
- For each content item, generate 1 multiple-choice quiz question with 4 options (1 correct + 3 wrong)
- Quiz must include exactly %d questions
- All titles, bulletpoints, questions and answers must be in %q language

Return this valid JSON format:
{
  "title": "Section Title",
  "content": [{"title": "Concept", "bulletpoints": ["Para1", "Para2"]}],
  "test": [{"question": "Question?", "answer": "Correct", "options": ["Correct", "Wrong", "Wrong", "Wrong"]}]
}`, ps.Title, req.Topic, req.Level, req.Language, ps.AvailableTime,
		ps.AvailableTime*50, ps.BulletCount, ps.BulletCount, req.Language)
}

// Rewrite returns the bulletpoints rewritten for the requested language and level.
func (g *OpenAIGenerator) Rewrite(ctx context.Context, req RewriteRequest) ([]string, error) {
	var out []string
	if err := g.completeJSON(ctx, rewritePrompt(req), &out); err != nil {
		return nil, fmt.Errorf("failed to rewrite bulletpoints: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func rewritePrompt(req RewriteRequest) string {
	points, _ := json.MarshalIndent(req.Bulletpoints, "", "  ")
	return fmt.Sprintf(`You are a rewriting engine for educational mobile content.

Task:
- Rewrite the following bulletpoints in %s for a level %d/10 learner.
- Maintain the original meaning and information.
- Ensure mobile-friendly, clear language.

Bulletpoints to rewrite:
%s

Return format:
[
  "bulletpoint1", "bulletpoint2", ...
]`, req.Language, req.Level, points)
}

// Model returns the chat model used for generation.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// ListModels returns the ids of the models the configured key can use.
func (g *OpenAIGenerator) ListModels(ctx context.Context) ([]string, error) {
	list, err := g.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
