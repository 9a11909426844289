package handler

import (
	"encoding/json"
	"net/http"

	"marginalia/internal/middleware"
	"marginalia/internal/service"
	"marginalia/pkg/response"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService *service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validator.New(),
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	user, err := h.userService.GetByID(userID)
	if err != nil {
		response.NotFound(w, err.Error())
		return
	}

	response.Success(w, user)
}

type renameUserRequest struct {
	Name string `json:"name" validate:"required,min=2,max=60"`
}

func (h *UserHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r)

	user, err := h.userService.Rename(userID, req.Name)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	response.Success(w, user)
}
