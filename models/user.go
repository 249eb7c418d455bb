package models

import (
	"context"
	"time"

	"github.com/blomoto/garage_backend/config"
	"github.com/blomoto/garage_backend/utils"
)

// User is owned by the account service; this core only needs identity, role
// and the contact fields forwarded to payment providers.
type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email" binding:"required"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('client','garage','admin');not null;default:'client'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

// CreateUser registers an account with a bcrypt-hashed password. The unique
// index on email turns a duplicate registration into ConflictError.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("%s is not a valid email address", input.Email)
	}
	role := UserRole(input.Role)
	if role == "" {
		role = UserRoleClient
	}
	if role != UserRoleClient && role != UserRoleGarage && role != UserRoleAdmin {
		return nil, utils.NewValidationError("%s is not a valid role", input.Role)
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("invalid phone number: %v", err)
		}
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Password: string(hashed),
		Role:     role,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, utils.NewConflictError("an account already exists for %s", input.Email)
		}
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchSingleModel[User](ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("user %d not found", id)
	}
	return user, nil
}

func GetUserByEmail(ctx context.Context, email string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, utils.NewNotFoundError("user not found")
	}
	return &user, nil
}
