package services

import (
	"time"

	"blogdesk/models"
)

// Response shapes returned by the HTTP API.

type UserResponse struct {
	ID              uint       `json:"id"`
	Username        string     `json:"username"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	Roles           []string   `json:"roles,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type PaginatedUsersResponse struct {
	Users    []UserResponse `json:"users"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// Paginated wraps one page of a listing.
type Paginated[T any] struct {
	Data     []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	LastPage int   `json:"last_page"`
}

func NewPaginated[T any](data []T, total int64, page, pageSize int) Paginated[T] {
	last := 1
	if pageSize > 0 && total > 0 {
		last = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	if data == nil {
		data = []T{}
	}
	return Paginated[T]{Data: data, Total: total, Page: page, PageSize: pageSize, LastPage: last}
}

type AuthorResource struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type CategoryResource struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	PostsCount  int64     `json:"posts_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type TagResource struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Color      *string `json:"color"`
	PostsCount int64   `json:"posts_count"`
}

type PostResource struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Body        string            `json:"body"`
	Excerpt     string            `json:"excerpt"`
	ReadingTime string            `json:"reading_time"`
	Status      string            `json:"status"`
	ImageURL    *string           `json:"image_url"`
	IsPublished bool              `json:"is_published"`
	PublishedAt *time.Time        `json:"published_at"`
	IsFeatured  bool              `json:"is_featured"`
	Views       int               `json:"views"`
	Likes       int               `json:"likes"`
	Author      *AuthorResource   `json:"author,omitempty"`
	Category    *CategoryResource `json:"category,omitempty"`
	Tags        []TagResource     `json:"tags"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   *time.Time        `json:"deleted_at,omitempty"`
}

type TaskResource struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CommentResource struct {
	ID              uint            `json:"id"`
	Body            string          `json:"body"`
	CommentableType string          `json:"commentable_type"`
	CommentableID   uint            `json:"commentable_id"`
	Author          *AuthorResource `json:"author,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewUserResponse(user models.User) UserResponse {
	resp := UserResponse{
		ID:              user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Email:           user.Email,
		EmailVerifiedAt: user.EmailVerifiedAt,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
	for _, r := range user.Roles {
		resp.Roles = append(resp.Roles, r.Name)
	}
	return resp
}

func newAuthor(u models.User) *AuthorResource {
	if u.ID == 0 {
		return nil
	}
	return &AuthorResource{ID: u.ID, Username: u.Username, Name: u.Name}
}

func NewCategoryResource(c models.Category) CategoryResource {
	return CategoryResource{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		PostsCount:  c.PostsCount,
		CreatedAt:   c.CreatedAt,
	}
}

func NewTagResource(t models.Tag) TagResource {
	return TagResource{ID: t.ID, Name: t.Name, Slug: t.Slug, Color: t.Color, PostsCount: t.PostsCount}
}

// NewPostResource renders a post; imageURL turns a stored image key into
// a public address.
func NewPostResource(p models.Post, imageURL func(string) string) PostResource {
	res := PostResource{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Body:        p.Body,
		Excerpt:     p.Excerpt(),
		ReadingTime: p.ReadingTime(),
		Status:      p.StatusLabel(),
		IsPublished: p.IsPublished,
		PublishedAt: p.PublishedAt,
		IsFeatured:  p.IsFeatured,
		Views:       p.Views,
		Likes:       p.Likes,
		Author:      newAuthor(p.User),
		Tags:        make([]TagResource, 0, len(p.Tags)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Image != nil && imageURL != nil {
		u := imageURL(*p.Image)
		res.ImageURL = &u
	}
	if p.Category.ID != 0 {
		c := NewCategoryResource(p.Category)
		res.Category = &c
	}
	for _, t := range p.Tags {
		res.Tags = append(res.Tags, NewTagResource(t))
	}
	if p.DeletedAt.Valid {
		deleted := p.DeletedAt.Time
		res.DeletedAt = &deleted
	}
	return res
}

func NewTaskResource(t models.Task) TaskResource {
	return TaskResource{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		Status:      t.StatusLabel(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func NewCommentResource(c models.Comment) CommentResource {
	return CommentResource{
		ID:              c.ID,
		Body:            c.Body,
		CommentableType: c.CommentableType,
		CommentableID:   c.CommentableID,
		Author:          newAuthor(c.User),
		CreatedAt:       c.CreatedAt,
	}
}
