package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/pkg/errors"

	"blogdesk/models"
	"blogdesk/repositories"
	"blogdesk/services"
)

const (
	defaultPopularViews = 100
	defaultRecentDays   = 7
)

type PostController struct {
	*binder
	comments *CommentController
}

func NewPostController(b *binder, comments *CommentController) *PostController {
	return &PostController{binder: b, comments: comments}
}

func (ctl *PostController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/posts").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"posts"}
	postParam := ws.PathParameter("post", "Post id or slug").DataType("string")
	idParam := ws.PathParameter("id", "Identifier of a trashed post").DataType("integer")

	list := ws.GET("").To(ctl.list).
		Doc("List posts").
		Param(ws.QueryParameter("search", "Keyword matched against title and body")).
		Param(ws.QueryParameter("category", "Category slug")).
		Param(ws.QueryParameter("tag", "Tag slug")).
		Param(ws.QueryParameter("author", "Author user id").DataType("integer")).
		Param(ws.QueryParameter("status", "published (default), draft or all")).
		Param(ws.QueryParameter("featured", "Only featured posts").DataType("boolean")).
		Param(ws.QueryParameter("popular", "Minimum views; true means 100")).
		Param(ws.QueryParameter("recent", "Created within this many days; true means 7")).
		Param(ws.QueryParameter("from", "Created on or after this date (YYYY-MM-DD or RFC 3339)")).
		Param(ws.QueryParameter("to", "Created on or before this date (YYYY-MM-DD or RFC 3339)")).
		Param(ws.QueryParameter("sort", "latest (default), popular or trending")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(services.Paginated[services.PostResource]{}).
		Returns(http.StatusOK, "OK", services.Paginated[services.PostResource]{})
	ws.Route(pageParamDocs(ws, ctl.allowGuest(list)))

	ws.Route(ctl.requireUser(ws.POST("")).To(ctl.create).
		Doc("Create a post").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusCreated, "Created", services.PostResource{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))

	ws.Route(pageParamDocs(ws, ctl.requireUser(ws.GET("/trash"))).To(ctl.trash).
		Doc("List trashed posts").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.Paginated[services.PostResource]{}))

	ws.Route(ctl.requireUser(ws.DELETE("/trash")).To(ctl.emptyTrash).
		Doc("Permanently delete every trashed post the user may delete").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", EmptyTrashResponse{}))

	ws.Route(ctl.allowGuest(ws.GET("/{post}")).Filter(ctl.bindPost).To(ctl.show).
		Doc("Show a post and count the view").
		Param(postParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.PostResource{}).
		Returns(http.StatusNotFound, "Not found", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.PUT("/{post}")).Filter(ctl.bindPost).To(ctl.update).
		Doc("Update a post").
		Param(postParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.PostResource{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.DELETE("/{post}")).Filter(ctl.bindPost).To(ctl.destroy).
		Doc("Move a post to the trash").
		Param(postParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", MessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}))

	ws.Route(ctl.allowGuest(ws.POST("/{post}/like")).Consumes("*/*").Filter(ctl.bindPost).To(ctl.like).
		Doc("Like a post").
		Param(postParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", LikeResponse{}))

	ws.Route(ctl.requireUser(ws.PUT("/{post}/image")).Consumes("multipart/form-data").Filter(ctl.bindPost).To(ctl.uploadImage).
		Doc("Upload the post image (jpeg, png or gif, at most 2 MiB)").
		Param(postParam).
		Param(ws.FormParameter("image", "Image file").DataType("file")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.PostResource{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.POST("/{id}/restore")).Consumes("*/*").To(ctl.restore).
		Doc("Restore a trashed post").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.PostResource{}).
		Returns(http.StatusNotFound, "Not in the trash", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.DELETE("/{id}/force")).To(ctl.forceDelete).
		Doc("Permanently delete a trashed post").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", MessageResponse{}).
		Returns(http.StatusNotFound, "Not in the trash", ErrorResponse{}))

	// Comments on a post live under the post's path.
	ws.Route(pageParamDocs(ws, ctl.allowGuest(ws.GET("/{post}/comments"))).Filter(ctl.bindPost).To(ctl.listComments).
		Doc("List comments on a post").
		Param(postParam).
		Metadata(restfulspec.KeyOpenAPITags, []string{"comments"}).
		Returns(http.StatusOK, "OK", services.Paginated[services.CommentResource]{}))

	ws.Route(ctl.requireUser(ws.POST("/{post}/comments")).Filter(ctl.bindPost).To(ctl.createComment).
		Doc("Comment on a post").
		Param(postParam).
		Metadata(restfulspec.KeyOpenAPITags, []string{"comments"}).
		Returns(http.StatusCreated, "Created", services.CommentResource{}))
}

type EmptyTrashResponse struct {
	Deleted int `json:"deleted"`
}

type LikeResponse struct {
	Likes int `json:"likes"`
}

func (ctl *PostController) resource(p *models.Post) services.PostResource {
	return services.NewPostResource(*p, ctl.posts.ImageURL)
}

func (ctl *PostController) page(posts []models.Post, total int64, page, pageSize int) services.Paginated[services.PostResource] {
	return postPage(posts, total, page, pageSize, ctl.posts.ImageURL)
}

// query builds a PostQuery from the request's query string.
func (ctl *PostController) query(req *restful.Request) (repositories.PostQuery, error) {
	ctx := req.Request.Context()
	q := repositories.PostQuery{
		Search: strings.TrimSpace(req.QueryParameter("search")),
		Status: req.QueryParameter("status"),
		Sort:   req.QueryParameter("sort"),
	}
	q.Page, q.PageSize = repositories.NormalizePage(pageParams(req))
	verr := &services.ValidationError{}

	if slug := req.QueryParameter("category"); slug != "" {
		c, err := ctl.categories.Resolve(ctx, slug)
		switch {
		case errors.Is(err, services.ErrNotFound):
			verr.Add("category", "The selected category is invalid.")
		case err != nil:
			return q, err
		default:
			q.CategoryID = c.ID
		}
	}
	if slug := req.QueryParameter("tag"); slug != "" {
		t, err := ctl.tags.Resolve(ctx, slug)
		switch {
		case errors.Is(err, services.ErrNotFound):
			verr.Add("tag", "The selected tag is invalid.")
		case err != nil:
			return q, err
		default:
			q.TagID = t.ID
		}
	}
	if raw := req.QueryParameter("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			verr.Add("author", "The author field must be an integer.")
		}
		q.AuthorID = uint(id)
	}
	q.Featured = truthy(req.QueryParameter("featured"))

	var ok bool
	if q.MinViews, ok = intOrDefault(req.QueryParameter("popular"), defaultPopularViews); !ok {
		verr.Add("popular", "The popular field must be an integer.")
	}
	if q.RecentDays, ok = intOrDefault(req.QueryParameter("recent"), defaultRecentDays); !ok {
		verr.Add("recent", "The recent field must be an integer.")
	}
	if q.From, ok = parseDate(req.QueryParameter("from"), false); !ok {
		verr.Add("from", "The from field must be a valid date.")
	}
	if q.To, ok = parseDate(req.QueryParameter("to"), true); !ok {
		verr.Add("to", "The to field must be a valid date.")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		verr.Add("to", "The to field must be a date after or equal to from.")
	}
	return q, verr.OrNil()
}

// parseDate reads an optional date bound. A bare date used as an upper
// bound covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, true
}

func truthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// intOrDefault reads an optional numeric flag: empty is 0, a boolean true
// is def.
func intOrDefault(v string, def int) (int, bool) {
	if v == "" {
		return 0, true
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n, true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return def, true
		}
		return 0, true
	}
	return 0, false
}

func (ctl *PostController) list(req *restful.Request, resp *restful.Response) {
	q, err := ctl.query(req)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	posts, total, err := ctl.posts.List(req.Request.Context(), actor(req), q)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, ctl.page(posts, total, q.Page, q.PageSize))
}

func (ctl *PostController) create(req *restful.Request, resp *restful.Response) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	post, err := ctl.posts.Create(req.Request.Context(), actor(req), attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusCreated, ctl.resource(post))
}

func (ctl *PostController) show(req *restful.Request, resp *restful.Response) {
	post, err := ctl.posts.Show(req.Request.Context(), actor(req), boundPost(req), true)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, ctl.resource(post))
}

func (ctl *PostController) update(req *restful.Request, resp *restful.Response) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	post, err := ctl.posts.Update(req.Request.Context(), actor(req), boundPost(req), attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, ctl.resource(post))
}

func (ctl *PostController) destroy(req *restful.Request, resp *restful.Response) {
	if err := ctl.posts.Delete(req.Request.Context(), actor(req), boundPost(req)); err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, MessageResponse{Message: "Post moved to trash."})
}

func (ctl *PostController) like(req *restful.Request, resp *restful.Response) {
	post, err := ctl.posts.Like(req.Request.Context(), actor(req), boundPost(req))
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, LikeResponse{Likes: post.Likes})
}

func (ctl *PostController) uploadImage(req *restful.Request, resp *restful.Response) {
	if err := req.Request.ParseMultipartForm(services.MaxImageSize + 1<<20); err != nil {
		badRequest(resp, "Invalid multipart body: "+err.Error())
		return
	}
	file, header, err := req.Request.FormFile("image")
	if err != nil {
		ctl.fail(resp, &services.ValidationError{Fields: map[string]string{"image": "The image field is required."}})
		return
	}
	defer file.Close()

	post, err := ctl.posts.UploadImage(req.Request.Context(), actor(req), boundPost(req), services.ImageUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, ctl.resource(post))
}

func (ctl *PostController) trash(req *restful.Request, resp *restful.Response) {
	page, pageSize := repositories.NormalizePage(pageParams(req))
	posts, total, err := ctl.posts.Trash(req.Request.Context(), actor(req), page, pageSize)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, ctl.page(posts, total, page, pageSize))
}

func (ctl *PostController) emptyTrash(req *restful.Request, resp *restful.Response) {
	n, err := ctl.posts.EmptyTrash(req.Request.Context(), actor(req))
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, EmptyTrashResponse{Deleted: n})
}

func (ctl *PostController) restore(req *restful.Request, resp *restful.Response) {
	id, ok := pathID(req, "id")
	if !ok {
		ctl.fail(resp, errors.Wrap(services.ErrNotFound, "trashed post"))
		return
	}
	post, err := ctl.posts.Restore(req.Request.Context(), actor(req), id)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, ctl.resource(post))
}

func (ctl *PostController) forceDelete(req *restful.Request, resp *restful.Response) {
	id, ok := pathID(req, "id")
	if !ok {
		ctl.fail(resp, errors.Wrap(services.ErrNotFound, "trashed post"))
		return
	}
	if err := ctl.posts.ForceDelete(req.Request.Context(), actor(req), id); err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, MessageResponse{Message: "Post permanently deleted."})
}

func (ctl *PostController) listComments(req *restful.Request, resp *restful.Response) {
	ctl.comments.list(req, resp, models.CommentablePosts, boundPost(req).ID)
}

func (ctl *PostController) createComment(req *restful.Request, resp *restful.Response) {
	ctl.comments.create(req, resp, models.CommentablePosts, boundPost(req).ID)
}
