package constants

// AuthorizationStatus is the state of one pairing request as reported by the appliance.
type AuthorizationStatus string

const (
	// AuthorizationUnknown means the app_token is invalid or has been revoked.
	AuthorizationUnknown AuthorizationStatus = "unknown"
	// AuthorizationPending means the user has not confirmed the request yet.
	AuthorizationPending AuthorizationStatus = "pending"
	// AuthorizationTimeout means the user did not confirm within the given time.
	AuthorizationTimeout AuthorizationStatus = "timeout"
	// AuthorizationGranted means the app_token is valid and can open a session.
	AuthorizationGranted AuthorizationStatus = "granted"
	// AuthorizationDenied means the user denied the request.
	AuthorizationDenied AuthorizationStatus = "denied"
)
