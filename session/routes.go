package session

import "github.com/medipass/hospital-worker/users"

var roleRoutes = map[users.Role]string{
	users.RoleSuperAdmin:    "/dashboard",
	users.RoleHospitalAdmin: "/hospital-admin",
	users.RoleDoctor:        "/doctor",
	users.RoleNurse:         "/nurse",
	users.RoleReceptionist:  "/receptionist",
	users.RolePatient:       "/patient",
}

// RouteForRole returns the landing route for a role, falling back to the
// root route for unknown roles.
func RouteForRole(role users.Role) string {
	if route, ok := roleRoutes[role]; ok {
		return route
	}
	return "/"
}

func IsRoutable(role users.Role) bool {
	_, ok := roleRoutes[role]
	return ok
}
