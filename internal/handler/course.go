package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/course"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/identity"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
)

// CourseHandler serves course generation and lesson rewriting.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// Generate handles POST /generate-course.
func (h *CourseHandler) Generate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	var req course.Request
	if err := json.Unmarshal(body, &req); err != nil {
		Error(w, r, domain.ErrBadRequest("invalid JSON body"))
		return
	}

	out, err := h.courses.Generate(r.Context(), identity.Resolve(r, body), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

// Regenerate handles POST /regenerate-lesson.
func (h *CourseHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req course.RewriteRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, r, err)
		return
	}
	points, err := h.courses.Rewrite(r.Context(), req)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"newBulletpoints": points})
}
