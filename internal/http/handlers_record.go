package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"pocket/internal/core"
	"pocket/internal/export"
	applog "pocket/internal/log"
	"pocket/internal/photos"
	"pocket/internal/services"

	"github.com/google/uuid"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	params := ParseMonthParams(r.URL.Query())
	userID := s.userID(r)
	ctx := r.Context()

	records, err := s.records.List(ctx, userID, params.Year, params.Month)
	if err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpList)
		return
	}
	cats, err := s.categoriesWithSentinel(r, userID)
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpList)
		return
	}

	NewResponse().JSON(map[string]any{
		"year":    params.Year,
		"month":   params.Month,
		"records": records,
		"summary": services.Summarize(params.Year, params.Month, records, cats),
	}).Write(w)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := PathUUID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rec, err := s.records.Get(r.Context(), s.userID(r), id)
	if err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpRead)
		return
	}
	NewResponse().JSON(rec).Write(w)
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.records.NewForm()).Write(w)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := PathUUID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	f, err := s.records.EditForm(r.Context(), s.userID(r), id)
	if err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpRead)
		return
	}
	NewResponse().JSON(f).Write(w)
}

// handleSaveRecord creates or updates the record behind a submitted form.
// A newly picked category must be one of the user's candidates.
func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	var f core.Form
	if err := DecodeJSON(w, r, &f); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	f.Title = sanitizeInput(f.Title)
	f.Note = sanitizeInput(f.Note)
	f.SetAmount(f.AmountText)
	if f.ImageName != "" && !photos.ValidName(f.ImageName) {
		f.ImageName = ""
	}

	userID := s.userID(r)
	ctx := r.Context()

	if f.CategoryID != uuid.Nil && f.CategoryID != f.BoundCategoryID {
		cats, err := s.categoryList(ctx, userID)
		if err != nil {
			s.fail(w, r, err, applog.ComponentCategory, applog.OpList)
			return
		}
		if _, err := services.SelectorFor(len(cats), s.menuLimit).Choose(cats, f.CategoryID); err != nil {
			s.fail(w, r, err, applog.ComponentRecord, applog.OpValidate)
			return
		}
	}

	rec, err := s.records.Save(ctx, userID, f)
	if err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpUpdate)
		return
	}

	created := rec.Version == 1
	s.events.LogRecordSaved(ctx, userID, rec, created)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	NewResponse().Status(status).JSON(rec).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := PathUUID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.records.Delete(r.Context(), s.userID(r), id); err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpDelete)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadPhoto stores the raw request body as a photo. Any failure
// yields an empty image name rather than an error.
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentPhotos)

	var f core.Form
	if id, err := QueryUUID(r.URL.Query(), "id"); err == nil {
		f.ID = id
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoUpload))
	switch {
	case err != nil:
		logger.Warn("Failed to read photo upload", applog.FieldError, err)
	case len(data) == 0:
		logger.Warn("Empty photo upload")
	default:
		s.records.AttachPhoto(r.Context(), s.userID(r), &f, data)
	}

	NewResponse().JSON(map[string]string{"image_name": f.ImageName}).Write(w)
}

func (s *Server) handleServePhoto(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !photos.ValidName(name) || s.photos == nil {
		NotFoundError("not found").Write(w)
		return
	}
	file, err := s.photos.Open(s.userID(r), name)
	if err != nil {
		NotFoundError("not found").Write(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.fail(w, r, err, applog.ComponentPhotos, applog.OpRead)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	params := ParseMonthParams(r.URL.Query())
	userID := s.userID(r)
	ctx := r.Context()

	records, err := s.records.List(ctx, userID, params.Year, params.Month)
	if err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpExport)
		return
	}
	cats, err := s.categoriesWithSentinel(r, userID)
	if err != nil {
		s.fail(w, r, err, applog.ComponentCategory, applog.OpList)
		return
	}

	var buf bytes.Buffer
	summary := services.Summarize(params.Year, params.Month, records, cats)
	if err := export.WriteMonth(&buf, records, cats, summary); err != nil {
		s.fail(w, r, err, applog.ComponentRecord, applog.OpExport)
		return
	}

	NewResponse().
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(params.Year, params.Month))).
		Body(export.ContentType, buf.Bytes()).
		Write(w)
}

// categoriesWithSentinel returns the cached list plus the user's fallback category.
func (s *Server) categoriesWithSentinel(r *http.Request, userID string) ([]core.Category, error) {
	cats, err := s.categoryList(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	sentinel, err := s.categories.Sentinel(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	all := make([]core.Category, 0, len(cats)+1)
	all = append(all, cats...)
	return append(all, sentinel), nil
}
