package policy

import "github.com/guitarprime/api/model"

// PurchaseViewAny limits the "my purchases" listing to students; admins and
// coaches have no purchase history of their own to browse.
func PurchaseViewAny(user *model.User) bool {
	return user.HasRole(model.RoleStudent)
}

// PurchaseView allows the owner of the purchase, plus admins and coaches.
func PurchaseView(user *model.User, purchase *model.Purchase) bool {
	if user == nil {
		return false
	}
	return user.ID == purchase.UserID || user.HasAnyRole(model.RoleAdmin, model.RoleCoach)
}

// PurchaseCreate restricts buying to students.
func PurchaseCreate(user *model.User) bool {
	return user.HasRole(model.RoleStudent)
}

// PurchaseUpdate is never allowed; state transitions go through the payment
// orchestrator only.
func PurchaseUpdate(user *model.User, purchase *model.Purchase) bool {
	return false
}

// PurchaseDelete is never allowed; purchases are an audit trail.
func PurchaseDelete(user *model.User, purchase *model.Purchase) bool {
	return false
}
