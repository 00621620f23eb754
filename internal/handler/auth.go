package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/service"
)

// AuthHandler serves the credential lifecycle endpoints.
type AuthHandler struct {
	Accounts *service.Accounts
	// ResetURLBase prefixes the link in reset emails; empty means the
	// scheme and host of the request.
	ResetURLBase string
}

func NewAuthHandler(accounts *service.Accounts, resetURLBase string) *AuthHandler {
	return &AuthHandler{Accounts: accounts, ResetURLBase: resetURLBase}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotReq struct {
	Email string `json:"email"`
}

// Signup: create an identity and log it in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req service.SignupInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Accounts.Signup(ctx, req)
	if err != nil {
		return err
	}
	return sendSession(c, http.StatusCreated, s)
}

// Login: exchange email and password for a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return sendSession(c, http.StatusOK, s)
}

// ForgotPassword: mail a reset link to the address.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bind(c, &req); err != nil {
		return err
	}
	base := h.ResetURLBase
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, req.Email, base); err != nil {
		return err
	}
	return sendMessage(c, "Token sent to email!")
}

// ResetPassword: redeem a reset token for a new password and a session.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req service.PasswordInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Accounts.ResetPassword(ctx, c.Param("token"), req)
	if err != nil {
		return err
	}
	return sendSession(c, http.StatusOK, s)
}

// UpdatePassword: rotate the caller's password; the response carries the
// only session token still valid.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
	var req service.PasswordInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Accounts.UpdatePassword(ctx, u.ID, req)
	if err != nil {
		return err
	}
	return sendSession(c, http.StatusOK, s)
}
