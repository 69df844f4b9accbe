package policy

import "github.com/guitarprime/api/model"

// ModuleViewAny allows anyone, including guests, to browse modules for
// discovery. Metadata only; the paywall is the entitlement engine's job.
func ModuleViewAny(user *model.User) bool {
	return true
}

// ModuleView decides metadata visibility for a single module. Guests only see
// free modules; any authenticated role may view module metadata.
func ModuleView(user *model.User, mod *model.Module) bool {
	if user == nil {
		return mod.IsFreeFlag
	}
	return user.HasAnyRole(model.RoleAdmin, model.RoleCoach, model.RoleStudent)
}

// ModuleCreate allows admins and coaches to create modules.
func ModuleCreate(user *model.User) bool {
	return user.HasAnyRole(model.RoleAdmin, model.RoleCoach)
}

// ModuleUpdate allows admins, or the coach who owns the module directly.
func ModuleUpdate(user *model.User, mod *model.Module) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCoach:
		return mod.OwnedBy(user.ID)
	case model.RoleStudent:
		return false
	}
	return false
}

// ModuleDelete mirrors ModuleUpdate.
func ModuleDelete(user *model.User, mod *model.Module) bool {
	return ModuleUpdate(user, mod)
}
