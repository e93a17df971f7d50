package domain

// Persisted keys shared by every console process using the same storage.
const (
	KeyToken    = "token"
	KeyRole     = "userRole"
	KeyEmail    = "userEmail"
	KeyLastPath = "lastPath"
)

// Credentials are submitted to the remote API to open a session.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the API's answer to a successful login.
type LoginResult struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}
