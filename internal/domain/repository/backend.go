package repository

// Backend selects the retrieval path for archived data.
type Backend string

const (
	BackendREST Backend = "rest"
	BackendHDB  Backend = "hdb"
)

// IsValidBackend returns true if b is a supported backend.
func IsValidBackend(b Backend) bool {
	switch b {
	case BackendREST, BackendHDB:
		return true
	default:
		return false
	}
}

// DefaultBackend returns the default backend.
func DefaultBackend() Backend { return BackendREST }

// NormalizeBackend converts raw string to a valid backend (or default).
func NormalizeBackend(s string) Backend {
	if s == "" {
		return DefaultBackend()
	}
	b := Backend(s)
	if IsValidBackend(b) {
		return b
	}
	return DefaultBackend()
}
