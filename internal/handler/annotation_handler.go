package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"marginalia/internal/domain"
	"marginalia/internal/middleware"
	"marginalia/internal/service"
	"marginalia/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// AnnotationHandler serves one annotation kind. The same handler type is
// mounted three times (segments, highlights, memos) with the kind fixed by
// the route, so clients cannot smuggle a mismatched kind in the body.
type AnnotationHandler struct {
	service  *service.AnnotationService
	kind     domain.AnnotationKind
	validate *validator.Validate
}

func NewAnnotationHandler(service *service.AnnotationService, kind domain.AnnotationKind) *AnnotationHandler {
	return &AnnotationHandler{
		service:  service,
		kind:     kind,
		validate: validator.New(),
	}
}

func (h *AnnotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	req.Kind = h.kind

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	annotation, version, err := h.service.Create(userID, &req)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Created(w, map[string]any{
		"annotation":   annotation,
		"sync_version": version,
	})
}

func (h *AnnotationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.AnnotationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r)
	id := mux.Vars(r)["id"]

	annotation, version, err := h.service.Update(userID, id, &patch)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Success(w, map[string]any{
		"annotation":   annotation,
		"sync_version": version,
	})
}

func (h *AnnotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id := mux.Vars(r)["id"]

	version, err := h.service.Delete(userID, id)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Success(w, map[string]any{"sync_version": version})
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

func (h *AnnotationHandler) DeleteBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	version, err := h.service.DeleteBulk(userID, req.IDs)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Success(w, map[string]any{"sync_version": version})
}

func writeAnnotationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}
