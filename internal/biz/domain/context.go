package domain

import (
	"strings"
	"time"
)

// ContextRecord is a named system instruction that users activate with a
// directive of the same name
type ContextRecord struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeContextName lowercases and trims a context name
func NormalizeContextName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PermissionMode controls who may change stored contexts
type PermissionMode string

const (
	PermissionAdmin PermissionMode = "admin"
	PermissionOpen  PermissionMode = "open"
)
