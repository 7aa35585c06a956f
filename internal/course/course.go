// Package course turns a topic into a structured mobile course using an LLM.
package course

import "context"

// Request describes the course a learner asked for.
type Request struct {
	Topic    string `json:"topic" validate:"required,max=200"`
	Level    int    `json:"level" validate:"min=1,max=10"`
	Time     int    `json:"time" validate:"min=5,max=600"`
	Language string `json:"language" validate:"required,max=32"`
}

// PlanSection is one entry of the course outline.
type PlanSection struct {
	Title         string `json:"title"`
	Complexity    int    `json:"complexity"`
	AvailableTime int    `json:"availableTime"`
	BulletCount   int    `json:"bulletCount"`
}

// Plan is the outline produced before section content.
type Plan struct {
	Title    string        `json:"title"`
	Sections []PlanSection `json:"sections"`
}

type Content struct {
	ID           int      `json:"id"`
	IsDone       bool     `json:"isDone"`
	Title        string   `json:"title"`
	Bulletpoints []string `json:"bulletpoints"`
}

type Question struct {
	ID       int      `json:"id"`
	IsDone   bool     `json:"isDone"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Options  []string `json:"options"`
}

// Section is a generated section. Error is set when generation failed and
// Content and Test are then empty.
type Section struct {
	PlanSection
	Content []Content  `json:"content"`
	Test    []Question `json:"test"`
	Error   string     `json:"error,omitempty"`
}

// Course is the response body of a generation request.
type Course struct {
	Topic    string    `json:"topic"`
	Level    int       `json:"level"`
	Language string    `json:"language"`
	Sections []Section `json:"sections"`
}

// Generator produces courses.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Course, error)
}

// RewriteRequest asks for existing lesson bulletpoints in another language or level.
// An empty Bulletpoints slice is allowed; a missing one is not.
type RewriteRequest struct {
	Language     string   `json:"language" validate:"required,max=32"`
	Level        int      `json:"level" validate:"required,min=1,max=10"`
	Bulletpoints []string `json:"bulletpoints" validate:"required"`
}

// Rewriter rewrites lesson bulletpoints.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) ([]string, error)
}

// SectionCount is the number of sections requested for a time budget in minutes.
func SectionCount(minutes int) int {
	if minutes < 30 {
		return 4
	}
	return minutes / 10
}
