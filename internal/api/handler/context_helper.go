package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/khalilhajj/PfeManagement/internal/api/middleware"
	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/internal/service"
	apperrors "github.com/khalilhajj/PfeManagement/pkg/errors"
	"github.com/khalilhajj/PfeManagement/pkg/response"
)

// MustGetPrincipal returns the caller injected by JWTAuth. When it is missing
// a 401 has been written and the handler must return.
func MustGetPrincipal(c *gin.Context) (authz.Principal, bool) {
	v, exists := c.Get(middleware.PrincipalKey)
	p, ok := v.(authz.Principal)
	if !exists || !ok || p.UserID == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return authz.Principal{}, false
	}
	return p, true
}

// tokenOf returns the jti and expiry of the access token used for the request.
func tokenOf(c *gin.Context) (string, time.Time) {
	jti := c.GetString(middleware.TokenIDKey)
	exp, _ := c.Get(middleware.TokenExpKey)
	t, _ := exp.(time.Time)
	return jti, t
}

// handleError writes err with the status of its kind. Errors that are not
// business errors become a 500 and are attached to the context for the access
// log.
func handleError(c *gin.Context, err error) {
	if e, ok := apperrors.As(err); ok {
		response.AppError(c, e)
		return
	}
	_ = c.Error(err)
	response.InternalError(c)
}

// UseWireFieldNames makes validation errors report json/form tag names
// instead of Go field names.
func UseWireFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
}

// bindError writes a 400 carrying one detail per failed validator tag.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]apperrors.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, apperrors.Field(fe.Field(), fieldMessage(fe)))
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "invalid request parameters", details)
		return
	}
	response.BadRequest(c, 10001, "invalid request body")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match the layout " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

// formUpload opens the multipart file under field. A missing file yields nil
// so the service decides whether it is required. The caller closes the file.
func formUpload(c *gin.Context, field string) (*service.Upload, multipart.File, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// withUpload runs fn with the optional multipart file under field.
func withUpload(c *gin.Context, field string, fn func(up *service.Upload)) {
	up, f, err := formUpload(c, field)
	if err != nil {
		response.BadRequest(c, 10001, "invalid multipart upload")
		return
	}
	if f != nil {
		defer f.Close()
	}
	fn(up)
}
