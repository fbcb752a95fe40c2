// Package policies holds the authorization rules for each resource. Every
// check takes the acting user, which is nil for guests. Users must have
// Roles.Permissions preloaded for permission-based checks to pass.
package policies

import "blogdesk/models"

func owns(user *models.User, ownerID uint) bool {
	return user != nil && user.ID != 0 && user.ID == ownerID
}

type PostPolicy struct{}

func (PostPolicy) ViewAny(*models.User) bool { return true }

// View lets anyone read a published post. Drafts and trashed posts are
// visible to their author and to post managers.
func (p PostPolicy) View(user *models.User, post *models.Post) bool {
	if post.IsPublished && !post.Trashed() {
		return true
	}
	return p.manage(user, post)
}

func (PostPolicy) Create(user *models.User) bool { return user != nil }

func (p PostPolicy) Update(user *models.User, post *models.Post) bool { return p.manage(user, post) }

func (p PostPolicy) Delete(user *models.User, post *models.Post) bool { return p.manage(user, post) }

func (p PostPolicy) Restore(user *models.User, post *models.Post) bool { return p.manage(user, post) }

func (p PostPolicy) ForceDelete(user *models.User, post *models.Post) bool {
	return p.manage(user, post)
}

// ManageAll reports whether the user may act on every author's posts.
func (PostPolicy) ManageAll(user *models.User) bool {
	return user.Can(models.PermPostsManageAll)
}

func (p PostPolicy) manage(user *models.User, post *models.Post) bool {
	return owns(user, post.UserID) || p.ManageAll(user)
}

type CommentPolicy struct{}

func (CommentPolicy) Create(user *models.User) bool { return user != nil }

func (CommentPolicy) Delete(user *models.User, comment *models.Comment) bool {
	return owns(user, comment.UserID) || user.Can(models.PermCommentsModerate)
}

// TaskPolicy keeps every to-do list private to its owner.
type TaskPolicy struct{}

func (TaskPolicy) Create(user *models.User) bool { return user != nil }

func (TaskPolicy) View(user *models.User, task *models.Task) bool { return owns(user, task.UserID) }

func (TaskPolicy) Update(user *models.User, task *models.Task) bool { return owns(user, task.UserID) }

func (TaskPolicy) Delete(user *models.User, task *models.Task) bool { return owns(user, task.UserID) }

type TaxonomyPolicy struct{}

func (TaxonomyPolicy) CreateCategory(user *models.User) bool {
	return user.Can(models.PermCategoriesManage)
}

func (TaxonomyPolicy) CreateTag(user *models.User) bool {
	return user.Can(models.PermTagsManage)
}
