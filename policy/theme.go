package policy

import "github.com/guitarprime/api/model"

// ThemeViewAny allows anyone, including guests, to browse themes.
func ThemeViewAny(user *model.User) bool {
	return true
}

// ThemeView allows anyone, including guests, to view a single theme.
func ThemeView(user *model.User, theme *model.Theme) bool {
	return true
}

// ThemeCreate restricts theme creation to admins.
func ThemeCreate(user *model.User) bool {
	return user.HasRole(model.RoleAdmin)
}

// ThemeUpdate restricts theme updates to admins.
func ThemeUpdate(user *model.User, theme *model.Theme) bool {
	return user.HasRole(model.RoleAdmin)
}

// ThemeDelete restricts theme deletion to admins.
func ThemeDelete(user *model.User, theme *model.Theme) bool {
	return user.HasRole(model.RoleAdmin)
}
