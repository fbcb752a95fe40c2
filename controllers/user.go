package controllers

import (
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"

	"blogdesk/repositories"
	"blogdesk/services"
)

type UserController struct {
	*base
}

func NewUserController(b *base) *UserController {
	return &UserController{base: b}
}

// RegisterRoutes sets up the user-related routes for a go-restful WebService.
func (ctl *UserController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/users").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"users"}

	ws.Route(ctl.requireUser(ws.GET("/{user-id}")).To(ctl.getUserByIDHandler).
		Doc("Get user by ID").
		Param(ws.PathParameter("user-id", "Identifier of the user").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(services.UserResponse{}).
		Returns(http.StatusOK, "User found", services.UserResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.PUT("/{user-id}")).To(ctl.updateUserHandler).
		Doc("Update user by ID").
		Param(ws.PathParameter("user-id", "Identifier of the user to update").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.UpdateUserInput{}).
		Writes(services.UserResponse{}).
		Returns(http.StatusOK, "User updated successfully", services.UserResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}).
		Returns(http.StatusConflict, "Email conflict", ErrorResponse{}))

	ws.Route(pageParamDocs(ws, ctl.requireUser(ws.GET(""))).To(ctl.listUsersHandler).
		Doc("List users with pagination").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(services.PaginatedUsersResponse{}).
		Returns(http.StatusOK, "Users listed successfully", services.PaginatedUsersResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.DELETE("/{user-id}")).To(ctl.deleteUserHandler).
		Doc("Delete user by ID").
		Param(ws.PathParameter("user-id", "Identifier of the user to delete").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "User deleted successfully", MessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", ErrorResponse{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))
}

// getUserByIDHandler (Handles GET /users/{user-id})
func (ctl *UserController) getUserByIDHandler(request *restful.Request, response *restful.Response) {
	targetUserID, ok := pathID(request, "user-id")
	if !ok {
		badRequest(response, "Invalid user ID format")
		return
	}
	user, err := ctl.users.GetUserByID(request.Request.Context(), targetUserID, actor(request))
	if err != nil {
		ctl.fail(response, err)
		return
	}
	writeJSON(response, http.StatusOK, services.NewUserResponse(*user))
}

// updateUserHandler (Handles PUT /users/{user-id})
func (ctl *UserController) updateUserHandler(request *restful.Request, response *restful.Response) {
	targetUserID, ok := pathID(request, "user-id")
	if !ok {
		badRequest(response, "Invalid user ID format")
		return
	}
	input := new(services.UpdateUserInput)
	if err := request.ReadEntity(input); err != nil {
		badRequest(response, "Invalid request body: "+err.Error())
		return
	}
	updatedUser, err := ctl.users.UpdateUser(request.Request.Context(), targetUserID, actor(request), input)
	if err != nil {
		ctl.fail(response, err)
		return
	}
	writeJSON(response, http.StatusOK, services.NewUserResponse(*updatedUser))
}

// listUsersHandler (Handles GET /users)
func (ctl *UserController) listUsersHandler(request *restful.Request, response *restful.Response) {
	page, pageSize := repositories.NormalizePage(pageParams(request))
	users, total, err := ctl.users.ListUsers(request.Request.Context(), page, pageSize, actor(request))
	if err != nil {
		ctl.fail(response, err)
		return
	}

	userResponses := make([]services.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = services.NewUserResponse(user)
	}
	writeJSON(response, http.StatusOK, services.PaginatedUsersResponse{
		Users:    userResponses,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// deleteUserHandler (Handles DELETE /users/{user-id})
func (ctl *UserController) deleteUserHandler(request *restful.Request, response *restful.Response) {
	targetUserID, ok := pathID(request, "user-id")
	if !ok {
		badRequest(response, "Invalid user ID format")
		return
	}
	if err := ctl.users.DeleteUser(request.Request.Context(), targetUserID, actor(request)); err != nil {
		ctl.fail(response, err)
		return
	}
	writeJSON(response, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
