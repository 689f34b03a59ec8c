package models

// JSONB represents PostgreSQL JSONB type
type JSONB map[string]interface{}
