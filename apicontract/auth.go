package apicontract

// Auth endpoints are entirely out of scope (§1: "authentication (OAuth
// token verification, JWT issuance) ... treated as external
// collaborators"). These shapes exist only so a contracts-only caller
// has a named type to serialize against; none of this module's
// components read or produce them.

// AuthLoginRequest carries whatever an external OAuth collaborator
// hands back after completing its own flow.
type AuthLoginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

// AuthLoginResponse carries the session tokens an external
// authentication collaborator issues.
type AuthLoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthRefreshRequest exchanges a refresh token for a new access token.
type AuthRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthRefreshResponse carries the newly issued access token.
type AuthRefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthLogoutRequest revokes a refresh token.
type AuthLogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}
