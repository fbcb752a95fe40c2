package controllers

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"

	"blogdesk/models"
	"blogdesk/services"
)

// TaskController serves the personal to-do list. Every route needs a
// logged in user and only reaches that user's tasks.
type TaskController struct {
	*binder
	comments *CommentController
}

func NewTaskController(b *binder, comments *CommentController) *TaskController {
	return &TaskController{binder: b, comments: comments}
}

func (ctl *TaskController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/tasks").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"tasks"}
	idParam := ws.PathParameter("task-id", "Identifier of the task").DataType("integer")

	ws.Route(ctl.requireUser(ws.GET("")).To(ctl.list).
		Doc("List the user's tasks, newest first").
		Param(ws.QueryParameter("status", "completed or pending")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []services.TaskResource{}))

	ws.Route(ctl.requireUser(ws.POST("")).To(ctl.create).
		Doc("Create a task").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusCreated, "Created", services.TaskResource{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.GET("/{task-id}")).Filter(ctl.bindTask).To(ctl.show).
		Doc("Show a task").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.TaskResource{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "Not found", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.PUT("/{task-id}")).Filter(ctl.bindTask).To(ctl.update).
		Doc("Update a task").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.TaskResource{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.DELETE("/{task-id}")).Filter(ctl.bindTask).To(ctl.destroy).
		Doc("Delete a task").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", MessageResponse{}))

	ws.Route(ctl.requireUser(ws.PATCH("/{task-id}/toggle")).Consumes("*/*").Filter(ctl.bindTask).To(ctl.toggle).
		Doc("Flip a task between pending and completed").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", services.TaskResource{}))

	ws.Route(pageParamDocs(ws, ctl.requireUser(ws.GET("/{task-id}/comments"))).Filter(ctl.bindTask).To(ctl.listComments).
		Doc("List comments on a task").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, []string{"comments"}).
		Returns(http.StatusOK, "OK", services.Paginated[services.CommentResource]{}))

	ws.Route(ctl.requireUser(ws.POST("/{task-id}/comments")).Filter(ctl.bindTask).To(ctl.createComment).
		Doc("Comment on a task").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, []string{"comments"}).
		Returns(http.StatusCreated, "Created", services.CommentResource{}))
}

func (ctl *TaskController) list(req *restful.Request, resp *restful.Response) {
	tasks, err := ctl.tasks.List(req.Request.Context(), actor(req), req.QueryParameter("status"))
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	out := make([]services.TaskResource, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, services.NewTaskResource(t))
	}
	writeJSON(resp, http.StatusOK, out)
}

func (ctl *TaskController) create(req *restful.Request, resp *restful.Response) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	task, err := ctl.tasks.Create(req.Request.Context(), actor(req), attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusCreated, services.NewTaskResource(*task))
}

func (ctl *TaskController) show(req *restful.Request, resp *restful.Response) {
	writeJSON(resp, http.StatusOK, services.NewTaskResource(*boundTask(req)))
}

func (ctl *TaskController) update(req *restful.Request, resp *restful.Response) {
	attrs, err := readAttributes(req)
	if err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	task, err := ctl.tasks.Update(req.Request.Context(), actor(req), boundTask(req).ID, attrs)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, services.NewTaskResource(*task))
}

func (ctl *TaskController) destroy(req *restful.Request, resp *restful.Response) {
	if err := ctl.tasks.Delete(req.Request.Context(), actor(req), boundTask(req).ID); err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, MessageResponse{Message: "Task deleted."})
}

func (ctl *TaskController) toggle(req *restful.Request, resp *restful.Response) {
	task, err := ctl.tasks.Toggle(req.Request.Context(), actor(req), boundTask(req).ID)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, services.NewTaskResource(*task))
}

func (ctl *TaskController) listComments(req *restful.Request, resp *restful.Response) {
	ctl.comments.list(req, resp, models.CommentableTasks, boundTask(req).ID)
}

func (ctl *TaskController) createComment(req *restful.Request, resp *restful.Response) {
	ctl.comments.create(req, resp, models.CommentableTasks, boundTask(req).ID)
}
