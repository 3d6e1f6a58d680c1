// Package server is the back-office HTTP API.
//
// Routes are declared as controllers and mounted through [middleware.Gate], so
// every endpoint carries its security policy next to its handler:
//
//	/auth/login          POST    unsecured
//	/auth/logout         POST    anonymous allowed
//	/auth/me             GET     login required
//	/management/user     *       admin only
//	/health              GET     unsecured
//	/metrics             GET     admin only
package server
