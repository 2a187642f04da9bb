// Package auth authenticates the administrator of the settings API.
//
// There is one login, taken from the api.auth section of the config. Its
// password may be stored in plain text or as an Argon2id PHC string
// (see HashPassword). A successful login yields a short-lived HS256 JWT
// that the API checks on every protected request.
package auth
