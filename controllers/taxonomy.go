package controllers

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"

	"blogdesk/models"
	"blogdesk/repositories"
	"blogdesk/services"
)

// CategoryShowResponse is a category with one page of its published posts.
type CategoryShowResponse struct {
	Category services.CategoryResource                `json:"category"`
	Posts    services.Paginated[services.PostResource] `json:"posts"`
}

type TagShowResponse struct {
	Tag   services.TagResource                     `json:"tag"`
	Posts services.Paginated[services.PostResource] `json:"posts"`
}

type CategoryController struct {
	*binder
}

func NewCategoryController(b *binder) *CategoryController {
	return &CategoryController{binder: b}
}

func (ctl *CategoryController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/categories").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"categories"}

	ws.Route(ws.GET("").To(ctl.list).
		Doc("List categories with their post counts").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []services.CategoryResource{}))

	ws.Route(pageParamDocs(ws, ws.GET("/{slug}")).Filter(ctl.bindCategory).To(ctl.show).
		Doc("Show a category and its published posts").
		Param(ws.PathParameter("slug", "Category slug")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", CategoryShowResponse{}).
		Returns(http.StatusNotFound, "Not found", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.POST("")).To(ctl.create).
		Doc("Create a category").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusCreated, "Created", services.CategoryResource{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))
}

func (ctl *CategoryController) list(req *restful.Request, resp *restful.Response) {
	categories, err := ctl.categories.List(req.Request.Context())
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	out := make([]services.CategoryResource, 0, len(categories))
	for _, c := range categories {
		out = append(out, services.NewCategoryResource(c))
	}
	writeJSON(resp, http.StatusOK, out)
}

func (ctl *CategoryController) show(req *restful.Request, resp *restful.Response) {
	category := boundCategory(req)
	page, pageSize := repositories.NormalizePage(pageParams(req))
	posts, total, err := ctl.categories.Posts(req.Request.Context(), category, page, pageSize)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, CategoryShowResponse{
		Category: services.NewCategoryResource(*category),
		Posts:    postPage(posts, total, page, pageSize, ctl.posts.ImageURL),
	})
}

func (ctl *CategoryController) create(req *restful.Request, resp *restful.Response) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	c, err := ctl.categories.Create(req.Request.Context(), actor(req), attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusCreated, services.NewCategoryResource(*c))
}

type TagController struct {
	*binder
}

func NewTagController(b *binder) *TagController {
	return &TagController{binder: b}
}

func (ctl *TagController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/tags").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"tags"}

	ws.Route(ws.GET("").To(ctl.list).
		Doc("List tags with their post counts").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []services.TagResource{}))

	ws.Route(pageParamDocs(ws, ws.GET("/{slug}")).Filter(ctl.bindTag).To(ctl.show).
		Doc("Show a tag and its published posts").
		Param(ws.PathParameter("slug", "Tag slug")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", TagShowResponse{}).
		Returns(http.StatusNotFound, "Not found", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.POST("")).To(ctl.create).
		Doc("Create a tag").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusCreated, "Created", services.TagResource{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))
}

func (ctl *TagController) list(req *restful.Request, resp *restful.Response) {
	tags, err := ctl.tags.List(req.Request.Context())
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	out := make([]services.TagResource, 0, len(tags))
	for _, t := range tags {
		out = append(out, services.NewTagResource(t))
	}
	writeJSON(resp, http.StatusOK, out)
}

func (ctl *TagController) show(req *restful.Request, resp *restful.Response) {
	tag := boundTag(req)
	page, pageSize := repositories.NormalizePage(pageParams(req))
	posts, total, err := ctl.tags.Posts(req.Request.Context(), tag, page, pageSize)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, TagShowResponse{
		Tag:   services.NewTagResource(*tag),
		Posts: postPage(posts, total, page, pageSize, ctl.posts.ImageURL),
	})
}

func (ctl *TagController) create(req *restful.Request, resp *restful.Response) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	t, err := ctl.tags.Create(req.Request.Context(), actor(req), attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusCreated, services.NewTagResource(*t))
}

func postPage(posts []models.Post, total int64, page, pageSize int, imageURL func(string) string) services.Paginated[services.PostResource] {
	out := make([]services.PostResource, 0, len(posts))
	for _, p := range posts {
		out = append(out, services.NewPostResource(p, imageURL))
	}
	return services.NewPaginated(out, total, page, pageSize)
}
