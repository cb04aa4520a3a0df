// Package common contains shared constants, sentinel errors and small helpers
// used across cloudra components.
package common

import "fmt"

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// UploadNamespacePrefix is the object-key prefix under which every user's
// uploads are placed.
const UploadNamespacePrefix = "cloudra"

// UploadNamespace returns the object-storage namespace reserved for ownerID.
func UploadNamespace(ownerID string) string {
	return fmt.Sprintf("%s/%s", UploadNamespacePrefix, ownerID)
}
