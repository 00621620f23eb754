package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/service"
)

// UserHandler serves profile self-service and user administration.
type UserHandler struct {
	Users    *service.Users
	Accounts *service.Accounts
}

func NewUserHandler(users *service.Users, accounts *service.Accounts) *UserHandler {
	return &UserHandler{Users: users, Accounts: accounts}
}

func (h *UserHandler) Me(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	me, err := h.Users.GetOne(ctx, u.ID, false)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "user", me)
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	me, err := h.Accounts.UpdateMe(ctx, u.ID, body)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "user", me)
}

func (h *UserHandler) DeleteMe(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Accounts.DeleteMe(ctx, u.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Create is not offered; identities come from signup.
func (h *UserHandler) Create(c echo.Context) error {
	return apperror.New(apperror.KindBadRequest, "This route is not defined! Please use /signup instead.")
}

func (h *UserHandler) GetAll(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Users.GetAll(ctx, c.QueryParams(), nil)
	if err != nil {
		return err
	}
	return sendList(c, "users", users)
}

func (h *UserHandler) GetOne(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetOne(ctx, id, false)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "user", u)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.Users.UpdateOne(ctx, id, body); err != nil {
		return err
	}
	u, err := h.Users.GetOne(ctx, id, false)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "user", u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.DeleteOne(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
