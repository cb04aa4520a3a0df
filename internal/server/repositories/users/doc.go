// Package users persists user accounts.
package users
