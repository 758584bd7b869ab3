package docdb

// Type represents the type of store backend.
type Type string

const (
	// TypeMongoDB represents a MongoDB-backed store.
	TypeMongoDB Type = "mongodb"
	// TypeMemory represents the in-process store used for development
	// and tests.
	TypeMemory Type = "memory"
)
