// Package jwt issues and verifies signed access tokens carrying the resolved
// identity, roles, and privileges of an authenticated account.
package jwt
