package models

import "gorm.io/gorm"

// Permission names an action, scoped as "<resource>:<action>[:<reach>]".
const (
	PermUsersList        = "users:list"
	PermUsersReadSelf    = "users:read:self"
	PermUsersReadAll     = "users:read:all"
	PermUsersUpdateSelf  = "users:update:self"
	PermUsersUpdateAll   = "users:update:all"
	PermUsersDeleteSelf  = "users:delete:self"
	PermUsersDeleteAll   = "users:delete:all"
	PermPostsManageAll   = "posts:manage:all"
	PermCommentsModerate = "comments:moderate"
	PermCategoriesManage = "categories:manage"
	PermTagsManage       = "tags:manage"
	PermRolesManage      = "roles:manage"
)

type Permission struct {
	gorm.Model
	Name        string `gorm:"unique;not null"`
	Description string
	Roles       []Role `gorm:"many2many:role_permissions;"`
}
