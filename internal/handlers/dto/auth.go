package dto

type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GuestRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

type AuthResponse struct {
	Uid            string `json:"uid"`
	Name           string `json:"name"`
	Guest          bool   `json:"guest"`
	Token          string `json:"token"`
	TokenExpiresAt string `json:"tokenExpiresAt"`
}

type UpdateMeRequest struct {
	Username    string `json:"username" binding:"omitempty,min=3,max=50"`
	DisplayName string `json:"display_name" binding:"max=64"`
	AvatarURL   string `json:"avatar_url" binding:"omitempty,url"`
}
