package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/internal/service"
)

// UserController exposes the user directory so the booking layer can keep
// display names in sync.
type UserController struct {
	users service.UserInteractor
}

func NewUserController(users service.UserInteractor) *UserController {
	return &UserController{users: users}
}

func (c *UserController) CreateUser(ctx *gin.Context) {
	type request struct {
		ID    string `json:"id"`
		Name  string `json:"name" binding:"required"`
		Email string `json:"email"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := c.users.CreateUser(ctx.Request.Context(), req.ID, req.Name, req.Email)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserExists) || errors.Is(err, repository.ErrUserEmailExists) {
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": user})
}

func (c *UserController) GetUser(ctx *gin.Context) {
	user, err := c.users.GetUser(ctx.Request.Context(), ctx.Param("userID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

func (c *UserController) UpdateUser(ctx *gin.Context) {
	type request struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := c.users.GetUser(ctx.Request.Context(), ctx.Param("userID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	user.Name = req.Name
	user.Email = req.Email
	if err := c.users.UpdateUser(ctx.Request.Context(), user); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserEmailExists) {
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}
