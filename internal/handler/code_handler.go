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

type CodeHandler struct {
	service  *service.CodeService
	validate *validator.Validate
}

func NewCodeHandler(service *service.CodeService) *CodeHandler {
	return &CodeHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	code, version, err := h.service.Create(userID, &req)
	if err != nil {
		writeCodeError(w, err)
		return
	}

	response.Created(w, map[string]any{
		"code":         code,
		"sync_version": version,
	})
}

func (h *CodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.CodePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID := middleware.GetUserID(r)
	id := mux.Vars(r)["id"]

	code, version, err := h.service.Update(userID, id, &patch)
	if err != nil {
		writeCodeError(w, err)
		return
	}

	response.Success(w, map[string]any{
		"code":         code,
		"sync_version": version,
	})
}

func (h *CodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	id := mux.Vars(r)["id"]

	version, err := h.service.Delete(userID, id)
	if err != nil {
		writeCodeError(w, err)
		return
	}

	response.Success(w, map[string]any{"sync_version": version})
}

func writeCodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrDuplicateName), errors.Is(err, service.ErrDuplicateColor):
		response.Error(w, http.StatusConflict, err.Error())
	default:
		response.InternalError(w, err.Error())
	}
}
