package http

import (
	"context"
	"errors"
	"net/http"

	"pocket/internal/core"
	applog "pocket/internal/log"
	"pocket/internal/services"

	"github.com/google/uuid"
)

// categoryList returns the user's categories through the per-user cache.
func (s *Server) categoryList(ctx context.Context, userID string) ([]core.Category, error) {
	return s.categoryCache.Get(ctx, userID, func(ctx context.Context) ([]core.Category, error) {
		return s.categories.List(ctx, userID)
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	cats, err := s.categoryList(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpList)
		return
	}
	NewResponse().JSON(map[string]any{"categories": cats}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	userID := s.userID(r)

	c, err := s.categories.Create(r.Context(), userID, sanitizeCategory(in))
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpCreate)
		return
	}
	s.categoryCache.Invalidate(userID)
	NewResponse().Status(http.StatusCreated).JSON(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := PathUUID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	userID := s.userID(r)

	c, err := s.categories.Update(r.Context(), userID, id, sanitizeCategory(in))
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpUpdate)
		return
	}
	s.categoryCache.Invalidate(userID)
	NewResponse().JSON(c).Write(w)
}

type deleteCategoriesRequest struct {
	IDs     []uuid.UUID `json:"ids"`
	Confirm bool        `json:"confirm"`
}

// handleDeleteCategories drives one edit session per request: select the
// given ids, ask for confirmation, then confirm or leave it pending.
func (s *Server) handleDeleteCategories(w http.ResponseWriter, r *http.Request) {
	var req deleteCategoriesRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	userID := s.userID(r)
	ctx := r.Context()

	editor := services.NewCategoryEditor(s.categories, userID)
	editor.ToggleEdit()
	for _, id := range req.IDs {
		if !editor.IsSelected(id) {
			_ = editor.Toggle(id)
		}
	}
	if err := editor.RequestDelete(); err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpDelete)
		return
	}
	if !req.Confirm {
		pending := editor.Selected()
		editor.Cancel()
		ids := make([]string, len(pending))
		for i, id := range pending {
			ids[i] = id.String()
		}
		NewResponse().
			Status(http.StatusConflict).
			JSON(errorBody{Error: "confirmation required", IDs: ids}).
			Write(w)
		return
	}

	deleted, err := editor.Confirm(ctx)
	if len(deleted) > 0 {
		s.categoryCache.Invalidate(userID)
		s.events.LogCategoriesDeleted(ctx, userID, deleted)
	}
	if err != nil && (len(deleted) == 0 || errors.Is(err, core.ErrCommitFailed)) {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpDelete)
		return
	}

	cats, listErr := s.categoryList(ctx, userID)
	if listErr != nil {
		s.fail(w, r, listErr, applog.ComponentCategory, applog.OpList)
		return
	}
	body := map[string]any{
		"deleted":    deleted,
		"categories": cats,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	NewResponse().JSON(body).Write(w)
}

func (s *Server) handlePresentPicker(w http.ResponseWriter, r *http.Request) {
	current, err := QueryUUID(r.URL.Query(), "current")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	cats, err := s.categoryList(r.Context(), s.userID(r))
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpList)
		return
	}
	selector := services.SelectorFor(len(cats), s.menuLimit)
	NewResponse().JSON(selector.Present(cats, current)).Write(w)
}

type chooseCategoryRequest struct {
	ID uuid.UUID `json:"id"`
}

func (s *Server) handleChooseCategory(w http.ResponseWriter, r *http.Request) {
	var req chooseCategoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	cats, err := s.categoryList(r.Context(), s.userID(r))
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpList)
		return
	}
	c, err := services.SelectorFor(len(cats), s.menuLimit).Choose(cats, req.ID)
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpValidate)
		return
	}
	NewResponse().JSON(c).Write(w)
}

func sanitizeCategory(in services.CategoryInput) services.CategoryInput {
	return services.CategoryInput{
		Name:  sanitizeInput(in.Name),
		Color: sanitizeInput(in.Color),
		Emoji: sanitizeInput(in.Emoji),
	}
}

// fail writes the mapped error response; server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, component, op, applog.NewFields().WithUser(s.userID(r)))
	}
	errorResponse(err).Write(w)
}
