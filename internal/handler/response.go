// Package handler exposes the HTTP handlers of the /api/v1 surface.  Every
// handler returns its errors; the echo error handler renders them.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func sendOne(c echo.Context, status int, key string, doc any) error {
	return c.JSON(status, echo.Map{
		"status": "success",
		"data":   echo.Map{key: doc},
	})
}

func sendList[T any](c echo.Context, key string, docs []*T) error {
	if docs == nil {
		docs = []*T{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(docs),
		"data":    echo.Map{key: docs},
	})
}

func sendMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": msg})
}

func sendSession(c echo.Context, status int, s *service.Session) error {
	return c.JSON(status, echo.Map{
		"status":  "success",
		"token":   s.Token.Raw,
		"expires": s.Token.Expires,
		"data":    echo.Map{"user": s.User},
	})
}

// objectID parses the named path parameter.
func objectID(c echo.Context, name string) (bson.ObjectID, error) {
	raw := c.Param(name)
	id, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		return bson.ObjectID{}, apperror.Wrap(apperror.KindInvalidID, fmt.Sprintf("Invalid %s: %s.", name, raw), err)
	}
	return id, nil
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Request body must be a JSON object", err)
	}
	return nil
}

// identity returns the user admitted by the access gate.
func identity(c echo.Context) (*model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, apperror.ErrUnauthenticated
	}
	return u, nil
}
