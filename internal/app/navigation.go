package app

import "storeadmin/internal/domain"

// NavItem is one entry of the console navigation.
type NavItem struct {
	Name string `json:"name"`
	Href string `json:"href"`
	Icon string `json:"icon"`
}

var baseNavigation = []NavItem{
	{Name: "Dashboard", Href: "/", Icon: "layout-dashboard"},
	{Name: "Products", Href: "/products", Icon: "package"},
	{Name: "Inventory", Href: "/inventory", Icon: "warehouse"},
	{Name: "Orders", Href: "/orders", Icon: "shopping-cart"},
	{Name: "Customers", Href: "/customers", Icon: "users"},
	{Name: "Reports & Finance", Href: "/reports", Icon: "file-text"},
}

var settingsNav = NavItem{Name: "Settings", Href: "/settings", Icon: "settings"}

// Navigation builds the navigation for role. Roles that may not use the
// console get nothing. This is presentation only; it does not authorize.
func Navigation(role domain.Role) []NavItem {
	if !IsPermittedRole(role) {
		return nil
	}
	nav := make([]NavItem, 0, len(baseNavigation)+1)
	nav = append(nav, baseNavigation...)
	if role == domain.RoleAdmin {
		nav = append(nav, settingsNav)
	}
	return nav
}

// Affordances lists the per-page actions shown to a role.
type Affordances struct {
	CreateProduct  bool `json:"create_product"`
	EditProduct    bool `json:"edit_product"`
	DeleteProduct  bool `json:"delete_product"`
	ManageSettings bool `json:"manage_settings"`
	ExportReports  bool `json:"export_reports"`
	PrintReports   bool `json:"print_reports"`
}

// AffordancesFor returns the actions to show for role.
func AffordancesFor(role domain.Role) Affordances {
	if !IsPermittedRole(role) {
		return Affordances{}
	}
	admin := role == domain.RoleAdmin
	return Affordances{
		CreateProduct:  admin,
		EditProduct:    admin,
		DeleteProduct:  admin,
		ManageSettings: admin,
		ExportReports:  true,
		PrintReports:   true,
	}
}
