// Package models defines the persisted cloudra entities and the value types
// exchanged between services and transport.
package models

import "time"

// UploadSignature lets a client upload one object straight to the object
// store without proxying bytes through the server.
type UploadSignature struct {
	ObjectKey  string    `json:"objectKey"`
	UploadURL  string    `json:"uploadUrl"`
	Method     string    `json:"method"`
	PublicURL  string    `json:"publicUrl"`
	Timestamp  int64     `json:"timestamp"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Signature  string    `json:"signature"`
	Credential string    `json:"credential"`
}
