package controllers

import (
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"

	"blogdesk/auth"
	"blogdesk/models"
	"blogdesk/services"
)

// LoginCredentials defines the structure of the login request
type LoginCredentials struct {
	Username string `json:"username" description:"Username for login"`
	Password string `json:"password" description:"Password for login"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	User      services.UserResponse `json:"user"`
}

type AuthController struct {
	*base
}

func NewAuthController(b *base) *AuthController {
	return &AuthController{base: b}
}

// RegisterRoutes adds /register, /login and /logout to the root service.
func (ctl *AuthController) RegisterRoutes(ws *restful.WebService) {
	tags := []string{"auth"}

	ws.Route(ws.POST("/register").To(ctl.register).
		Doc("Register a new account and log it in").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.CreateUserInput{}).
		Returns(http.StatusCreated, "User created", TokenResponse{}).
		Returns(http.StatusUnprocessableEntity, "Validation failed", ErrorResponse{}).
		Returns(http.StatusConflict, "Username or email already exists", ErrorResponse{}))

	ws.Route(ws.POST("/login").To(ctl.login).
		Doc("Exchange credentials for a token").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(LoginCredentials{}).
		Returns(http.StatusOK, "Logged in", TokenResponse{}).
		Returns(http.StatusUnauthorized, "Invalid credentials", ErrorResponse{}))

	ws.Route(ctl.requireUser(ws.POST("/logout")).Consumes("*/*").To(ctl.logout).
		Doc("Revoke the current token").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "Logged out", MessageResponse{}))
}

func (ctl *AuthController) register(req *restful.Request, resp *restful.Response) {
	input := new(services.CreateUserInput)
	if err := req.ReadEntity(input); err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	user, err := ctl.users.CreateUser(req.Request.Context(), input)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	ctl.issue(resp, http.StatusCreated, user)
}

func (ctl *AuthController) login(req *restful.Request, resp *restful.Response) {
	creds := new(LoginCredentials)
	if err := req.ReadEntity(creds); err != nil {
		badRequest(resp, "Invalid request body: "+err.Error())
		return
	}
	user, err := ctl.users.Authenticate(req.Request.Context(), creds.Username, creds.Password)
	if err != nil {
		ctl.fail(resp, err)
		return
	}
	ctl.issue(resp, http.StatusOK, user)
}

func (ctl *AuthController) issue(resp *restful.Response, status int, user *models.User) {
	token, claims, err := ctl.authn.GenerateToken(user)
	if err != nil {
		ctl.log.Error("Could not generate token", zap.Uint("user_id", user.ID), zap.Error(err))
		writeJSON(resp, http.StatusInternalServerError, ErrorResponse{Message: "Could not generate token"})
		return
	}
	writeJSON(resp, status, TokenResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: services.NewUserResponse(*user)})
}

func (ctl *AuthController) logout(req *restful.Request, resp *restful.Response) {
	claims, ok := auth.ClaimsFrom(req)
	if !ok {
		writeJSON(resp, http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized"})
		return
	}
	if err := ctl.authn.Revoke(req.Request.Context(), claims); err != nil {
		ctl.fail(resp, err)
		return
	}
	writeJSON(resp, http.StatusOK, MessageResponse{Message: "Logged out."})
}
