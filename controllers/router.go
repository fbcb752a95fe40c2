package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"go.uber.org/zap"

	"blogdesk/auth"
	"blogdesk/services"
)

// Deps is everything the HTTP API is built from.
type Deps struct {
	Auth       *auth.Authenticator
	Users      services.UserService
	Posts      services.PostService
	Categories services.CategoryService
	Tags       services.TagService
	Tasks      services.TaskService
	Comments   services.CommentService
	// Health reports whether the backing stores are reachable.
	Health func(ctx context.Context) error
	// Files, when set, serves stored images under /storage/.
	Files http.Handler
	Log   *zap.Logger
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewContainer wires every controller into a go-restful container with
// access logging, panic recovery and the OpenAPI document.
func NewContainer(d Deps) *restful.Container {
	log := d.Log.Named("http")
	b := &base{authn: d.Auth, users: d.Users, log: log}
	bind := &binder{base: b, posts: d.Posts, categories: d.Categories, tags: d.Tags, tasks: d.Tasks}
	comments := NewCommentController(b, d.Comments)

	c := restful.NewContainer()
	c.DoNotRecover(false)
	c.RecoverHandler(func(panicReason interface{}, w http.ResponseWriter) {
		log.Error("Recovered from panic", zap.Any("panic", panicReason), zap.Stack("stack"))
		w.Header().Set("Content-Type", restful.MIME_JSON)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Message: "Internal Server Error"})
	})
	c.ServiceErrorHandler(func(serr restful.ServiceError, _ *restful.Request, resp *restful.Response) {
		writeJSON(resp, serr.Code, ErrorResponse{Message: serr.Message})
	})
	c.Filter(accessLog(log))

	root := new(restful.WebService)
	root.Path("/").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	root.Route(root.GET("/").To(func(req *restful.Request, resp *restful.Response) {
		http.Redirect(resp.ResponseWriter, req.Request, "/posts", http.StatusFound)
	}).Doc("Redirect to the post listing"))
	root.Route(root.GET("/health").To(healthHandler(d.Health)).
		Doc("Liveness and database check").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "Healthy", HealthResponse{}).
		Returns(http.StatusServiceUnavailable, "Unhealthy", HealthResponse{}))
	NewAuthController(b).RegisterRoutes(root)
	c.Add(root)

	registrars := []interface{ RegisterRoutes(*restful.WebService) }{
		NewUserController(b),
		NewPostController(bind, comments),
		NewCategoryController(bind),
		NewTagController(bind),
		NewTaskController(bind, comments),
		comments,
	}
	for _, r := range registrars {
		ws := new(restful.WebService)
		r.RegisterRoutes(ws)
		c.Add(ws)
	}

	if d.Files != nil {
		c.Handle("/storage/", http.StripPrefix("/storage", d.Files))
	}

	c.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices:                   c.RegisteredWebServices(),
		APIPath:                       "/apidocs.json",
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}))
	return c
}

func healthHandler(check func(ctx context.Context) error) restful.RouteFunction {
	return func(req *restful.Request, resp *restful.Response) {
		if check != nil {
			ctx, cancel := context.WithTimeout(req.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeJSON(resp, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		writeJSON(resp, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

// accessLog logs every request once it has been served.
func accessLog(log *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		start := time.Now()
		chain.ProcessFilter(req, resp)

		fields := []zap.Field{
			zap.String("client_ip", req.Request.RemoteAddr),
			zap.String("method", req.Request.Method),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", req.Request.UserAgent()),
			zap.String("path", req.Request.URL.Path),
		}
		if id, ok := req.Attribute(auth.AttrUserID).(uint); ok {
			fields = append(fields, zap.Uint("user_id", id))
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			log.Warn("Request", fields...)
			return
		}
		log.Info("Request", fields...)
	}
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Blogdesk API",
			Description: "Blog with categories, tags, comments and a personal to-do list",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "auth", Description: "Registration and tokens"}},
		{TagProps: spec.TagProps{Name: "users", Description: "User accounts"}},
		{TagProps: spec.TagProps{Name: "posts", Description: "Blog posts and the trash"}},
		{TagProps: spec.TagProps{Name: "categories", Description: "Post categories"}},
		{TagProps: spec.TagProps{Name: "tags", Description: "Post tags"}},
		{TagProps: spec.TagProps{Name: "comments", Description: "Comments on posts and tasks"}},
		{TagProps: spec.TagProps{Name: "tasks", Description: "Personal to-do list"}},
	}
	swo.SecurityDefinitions = spec.SecurityDefinitions{
		"bearer": spec.APIKeyAuth("Authorization", "header"),
	}
}
