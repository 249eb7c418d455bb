package main

import (
	"net/http"

	"github.com/blomoto/garage_backend/models"
	"github.com/blomoto/garage_backend/utils"
	"github.com/gin-gonic/gin"
)

type registerInput struct {
	models.NewUser
	GarageName    string `json:"garage_name"`
	GarageAddress string `json:"garage_address"`
}

func registerHandler(c *gin.Context) {
	ctx := c.Request.Context()
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}
	if input.Role == string(models.UserRoleAdmin) {
		writeError(c, utils.NewAuthorizationError("admin accounts are provisioned out of band"))
		return
	}

	user, err := models.CreateUser(ctx, &input.NewUser)
	if err != nil {
		writeError(c, err)
		return
	}

	if user.Role == models.UserRoleGarage {
		name := input.GarageName
		if name == "" {
			name = user.Name
		}
		if _, gerr := models.CreateGarage(ctx, &models.Garage{
			OwnerId: user.ID,
			Name:    name,
			Email:   user.Email,
			Phone:   user.Phone,
			Address: input.GarageAddress,
		}); gerr != nil {
			writeError(c, gerr)
			return
		}
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, utils.NewValidationError("invalid payload: %v", err))
		return
	}

	user, err := models.GetUserByEmail(c.Request.Context(), input.Email)
	if err != nil || utils.ComparePassword(user.Password, input.Password) != nil {
		// Same answer for unknown email and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
