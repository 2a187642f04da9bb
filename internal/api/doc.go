// Package api serves the settings and status HTTP API of the bridge.
//
// Endpoints (all under /api/v1):
//
//	GET  /health           liveness, no auth
//	POST /auth/login       administrator login, returns a bearer JWT
//	GET  /settings         current settings document
//	PUT  /settings         submit changed settings (validated, then applied)
//	GET  /mqtt             broker session state and subscriptions
//	GET  /schedule         schedule topic and subscription state
//	GET  /schedule/runs    recently applied run-once programs
//	GET  /audit            settings changes, reloads and logins
//
// Everything except health and login requires "Authorization: Bearer <jwt>".
// When a panel handler is supplied it serves the settings page on every
// other path.
package api
