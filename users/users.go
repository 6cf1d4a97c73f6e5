// Package users holds the GitHub profile cached alongside an authenticated
// session. There is no local user database: identity is delegated entirely
// to GitHub, and this struct mirrors the fields the UI needs from
// GET https://api.github.com/user.
package users

// User is the provider profile of the logged-in user.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`

	// Email is only populated when the granted scopes include user:email.
	Email string `json:"email,omitempty"`

	PublicGists int `json:"public_gists"`
	Followers   int `json:"followers"`
}

// DisplayName returns the human-readable name, falling back to the login.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}
