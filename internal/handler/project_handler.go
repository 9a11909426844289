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

type ProjectHandler struct {
	service  *service.ProjectService
	validate *validator.Validate
}

func NewProjectHandler(service *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	project, err := h.service.Create(userID, &req)
	if err != nil {
		response.InternalError(w, "Failed to create project")
		return
	}

	response.Created(w, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	projects, err := h.service.List(userID)
	if err != nil {
		response.InternalError(w, "Failed to list projects")
		return
	}

	response.Success(w, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	projectID := mux.Vars(r)["id"]

	project, err := h.service.Get(userID, projectID)
	if err != nil {
		writeProjectError(w, err)
		return
	}

	response.Success(w, project)
}

func (h *ProjectHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	projectID := mux.Vars(r)["id"]

	meta, err := h.service.GetMeta(userID, projectID)
	if err != nil {
		writeProjectError(w, err)
		return
	}

	response.Success(w, meta)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r)
	projectID := mux.Vars(r)["id"]

	project, err := h.service.Update(userID, projectID, &patch)
	if err != nil {
		writeProjectError(w, err)
		return
	}

	response.Success(w, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	projectID := mux.Vars(r)["id"]

	if err := h.service.Delete(userID, projectID); err != nil {
		writeProjectError(w, err)
		return
	}

	response.Success(w, map[string]string{"message": "Project deleted successfully"})
}

func writeProjectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}
