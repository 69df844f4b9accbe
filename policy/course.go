package policy

import "github.com/guitarprime/api/model"

// CourseViewAny allows any authenticated role to browse the course catalog.
func CourseViewAny(user *model.User) bool {
	return user.HasAnyRole(model.RoleAdmin, model.RoleCoach, model.RoleStudent)
}

// CourseView decides metadata visibility for a single course. Admins see
// everything; coaches see their own courses in any state and other coaches'
// approved ones; students and guests see approved courses only.
func CourseView(user *model.User, course *model.Course) bool {
	if user == nil {
		return course.IsApproved
	}
	switch user.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCoach:
		return course.CoachID == user.ID || course.IsApproved
	case model.RoleStudent:
		return course.IsApproved
	}
	return false
}

// CourseCreate allows admins and coaches to create courses.
func CourseCreate(user *model.User) bool {
	return user.HasAnyRole(model.RoleAdmin, model.RoleCoach)
}

// CourseUpdate allows admins, or the owning coach.
func CourseUpdate(user *model.User, course *model.Course) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCoach:
		return course.CoachID == user.ID
	case model.RoleStudent:
		return false
	}
	return false
}

// CourseDelete allows admins, or the owning coach while the course is still
// unapproved. Once approved, only an admin can remove it.
func CourseDelete(user *model.User, course *model.Course) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCoach:
		return course.CoachID == user.ID && !course.IsApproved
	case model.RoleStudent:
		return false
	}
	return false
}

// CourseApprove restricts course approval to admins.
func CourseApprove(user *model.User, course *model.Course) bool {
	return user.HasRole(model.RoleAdmin)
}
