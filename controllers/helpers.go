package controllers

import (
	"io"
	"net/http"
	"strconv"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"blogdesk/auth"
	"blogdesk/models"
	"blogdesk/services"
)

// Request attributes set by the filters in this package.
const (
	attrActor    = "actor"
	attrPost     = "post"
	attrCategory = "category"
	attrTag      = "tag"
	attrTask     = "task"
)

// ErrorResponse is the body of every failed request. Errors is only set
// for validation failures.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// base holds what every controller needs to authenticate requests and
// report errors.
type base struct {
	authn *auth.Authenticator
	users services.UserService
	log   *zap.Logger
}

// requireUser adds the filters for routes that need a logged in user.
func (b *base) requireUser(rb *restful.RouteBuilder) *restful.RouteBuilder {
	return rb.Filter(b.authn.AuthFilter()).Filter(b.loadActor).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{})
}

// allowGuest adds the filters for routes open to guests that behave
// differently for logged in users.
func (b *base) allowGuest(rb *restful.RouteBuilder) *restful.RouteBuilder {
	return rb.Filter(b.authn.OptionalAuthFilter()).Filter(b.loadActor)
}

// loadActor turns the authenticated user id into a user with roles and
// permissions.
func (b *base) loadActor(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if id, ok := req.Attribute(auth.AttrUserID).(uint); ok {
		actor, err := b.users.LoadActor(req.Request.Context(), id)
		if err != nil {
			b.fail(resp, err)
			return
		}
		req.SetAttribute(attrActor, actor)
	}
	chain.ProcessFilter(req, resp)
}

// actor returns the logged in user, or nil for guests.
func actor(req *restful.Request) *models.User {
	u, _ := req.Attribute(attrActor).(*models.User)
	return u
}

// fail translates a service error into an HTTP response.
func (b *base) fail(resp *restful.Response, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(resp, http.StatusUnprocessableEntity, ErrorResponse{Message: "The given data was invalid.", Errors: verr.Fields})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(resp, http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(resp, http.StatusForbidden, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		writeJSON(resp, http.StatusUnauthorized, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrConflict):
		writeJSON(resp, http.StatusConflict, ErrorResponse{Message: err.Error()})
	default:
		b.log.Error("Unhandled service error", zap.Error(err))
		writeJSON(resp, http.StatusInternalServerError, ErrorResponse{Message: "An internal error occurred"})
	}
}

func writeJSON(resp *restful.Response, status int, body any) {
	_ = resp.WriteHeaderAndJson(status, body, restful.MIME_JSON)
}

func badRequest(resp *restful.Response, message string) {
	writeJSON(resp, http.StatusBadRequest, ErrorResponse{Message: message})
}

// readAttributes decodes a JSON object body. An empty body is an empty
// object.
func readAttributes(req *restful.Request) (services.Attributes, error) {
	attrs := services.Attributes{}
	if err := req.ReadEntity(&attrs); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return attrs, nil
}

// pageParams reads page and page_size; bad values fall back to defaults.
func pageParams(req *restful.Request) (int, int) {
	page, err := strconv.Atoi(req.QueryParameter("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(req.QueryParameter("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = 0
	}
	return page, pageSize
}

func pathID(req *restful.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(req.PathParameter(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func pageParamDocs(ws *restful.WebService, rb *restful.RouteBuilder) *restful.RouteBuilder {
	return rb.
		Param(ws.QueryParameter("page", "Page number (default 1)").DataType("integer").DefaultValue("1")).
		Param(ws.QueryParameter("page_size", "Items per page (default 10, max 100)").DataType("integer").DefaultValue("10"))
}
