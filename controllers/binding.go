package controllers

import (
	restful "github.com/emicklei/go-restful/v3"
	"github.com/pkg/errors"

	"blogdesk/models"
	"blogdesk/services"
)

// Route-model binding: these filters load the model named in the path and
// answer 404 before the handler runs when it does not exist.

type binder struct {
	*base
	posts      services.PostService
	categories services.CategoryService
	tags       services.TagService
	tasks      services.TaskService
}

// bindPost resolves {post} by numeric id or slug.
func (b *binder) bindPost(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	post, err := b.posts.Resolve(req.Request.Context(), req.PathParameter("post"))
	if err != nil {
		b.fail(resp, err)
		return
	}
	req.SetAttribute(attrPost, post)
	chain.ProcessFilter(req, resp)
}

func (b *binder) bindCategory(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	category, err := b.categories.Resolve(req.Request.Context(), req.PathParameter("slug"))
	if err != nil {
		b.fail(resp, err)
		return
	}
	req.SetAttribute(attrCategory, category)
	chain.ProcessFilter(req, resp)
}

func (b *binder) bindTag(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	tag, err := b.tags.Resolve(req.Request.Context(), req.PathParameter("slug"))
	if err != nil {
		b.fail(resp, err)
		return
	}
	req.SetAttribute(attrTag, tag)
	chain.ProcessFilter(req, resp)
}

// bindTask resolves {task-id} among the actor's tasks. It must run after
// the actor is loaded.
func (b *binder) bindTask(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	id, ok := pathID(req, "task-id")
	if !ok {
		b.fail(resp, errors.Wrap(services.ErrNotFound, "task"))
		return
	}
	task, err := b.tasks.Get(req.Request.Context(), actor(req), id)
	if err != nil {
		b.fail(resp, err)
		return
	}
	req.SetAttribute(attrTask, task)
	chain.ProcessFilter(req, resp)
}

func boundPost(req *restful.Request) *models.Post {
	p, _ := req.Attribute(attrPost).(*models.Post)
	return p
}

func boundCategory(req *restful.Request) *models.Category {
	c, _ := req.Attribute(attrCategory).(*models.Category)
	return c
}

func boundTag(req *restful.Request) *models.Tag {
	t, _ := req.Attribute(attrTag).(*models.Tag)
	return t
}

func boundTask(req *restful.Request) *models.Task {
	t, _ := req.Attribute(attrTask).(*models.Task)
	return t
}
