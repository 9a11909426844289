package handler

import (
	"encoding/json"
	"net/http"

	"marginalia/internal/domain"
	"marginalia/internal/middleware"
	"marginalia/internal/service"
	"marginalia/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type DocumentHandler struct {
	service  *service.DocumentService
	validate *validator.Validate
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	doc, version, err := h.service.Create(userID, &req)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Created(w, map[string]any{
		"file":         doc,
		"sync_version": version,
	})
}

func (h *DocumentHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var patch domain.DocumentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r)
	id := mux.Vars(r)["id"]

	doc, version, err := h.service.Rename(userID, id, &patch)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Success(w, map[string]any{
		"file":         doc,
		"sync_version": version,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id := mux.Vars(r)["id"]

	version, err := h.service.Delete(userID, id)
	if err != nil {
		writeAnnotationError(w, err)
		return
	}

	response.Success(w, map[string]any{"sync_version": version})
}
