package server

// Route path constants
const (
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	RouteAPIMe          = "/api/me"
	RouteAPIAdminStatus = "/api/admin/status"

	RouteHandoffIssue  = "/handoff/{surface}"
	RouteHandoffRedeem = "/handoff/redeem"

	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
