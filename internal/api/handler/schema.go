package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Users ---

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type profileLoginRequest struct {
	Email      string `json:"email"      validate:"omitempty,email"`
	Name       string `json:"name"`
	ProviderID string `json:"providerId"`
}

// --- Admin ---

type statusUpdateRequest struct {
	Status      string     `json:"status"      validate:"required"`
	Comment     string     `json:"comment"     validate:"required"`
	PaymentDate *time.Time `json:"paymentDate"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required"`
}

type verifyResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

// --- Identity emulator ---

type signInRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type signInIdpRequest struct {
	ProviderID  string `json:"providerId"  validate:"required"`
	Email       string `json:"email"       validate:"required,email"`
	DisplayName string `json:"displayName"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type methodsResponse struct {
	Methods []string `json:"methods"`
}
