package controllers

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/pkg/errors"

	"blogdesk/repositories"
	"blogdesk/services"
)

// CommentController serves DELETE /comments/{comment-id}. Listing and
// creating happen under the commentable's own path.
type CommentController struct {
	*base
	comments services.CommentService
}

func NewCommentController(b *base, comments services.CommentService) *CommentController {
	return &CommentController{base: b, comments: comments}
}

func (ctl *CommentController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/comments").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)

	ws.Route(ctl.requireUser(ws.DELETE("/{comment-id}")).To(ctl.destroy).
		Doc("Delete a comment").
		Param(ws.PathParameter("comment-id", "Identifier of the comment").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"comments"}).
		Returns(http.StatusOK, "OK", MessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "Not found", ErrorResponse{}))
}

func (ctl *CommentController) list(req *restful.Request, resp *restful.Response, kind string, id uint) {
	page, pageSize := repositories.NormalizePage(pageParams(req))
	comments, total, err := ctl.comments.List(req.Request.Context(), actor(req), kind, id, page, pageSize)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	out := make([]services.CommentResource, 0, len(comments))
	for _, c := range comments {
		out = append(out, services.NewCommentResource(c))
	}
	writeJSON(resp, http.StatusOK, services.NewPaginated(out, total, page, pageSize))
}

func (ctl *CommentController) create(req *restful.Request, resp *restful.Response, kind string, id uint) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	comment, err := ctl.comments.Create(req.Request.Context(), actor(req), kind, id, attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusCreated, services.NewCommentResource(*comment))
}

func (ctl *CommentController) destroy(req *restful.Request, resp *restful.Response) {
	id, ok := pathID(req, "comment-id")
	if !ok {
		ctl.fail(resp, errors.Wrap(services.ErrNotFound, "comment"))
		return
	}
	if err := ctl.comments.Delete(req.Request.Context(), actor(req), id); err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, MessageResponse{Message: "Comment deleted."})
}

