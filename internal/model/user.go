// Package model defines the data structures used throughout the application.
package model

// User represents a registered account.
//
// WHY EMAIL AS THE PRIMARY KEY?
// There is no external identity provider here — users sign up with an email
// and a password, and the email is the natural unique identity. Contacts
// reference each other by email too, so a surrogate key would just add a
// lookup for no benefit at this scale.
//
// Contacts and FavoriteSpotIDs are ordered slices that behave like sets:
// the service layer deduplicates on every mutation, so an entry never
// appears twice. Both may reference rows that no longer resolve (a favorite
// for a removed spot, a contact who was never registered) — readers drop
// unresolvable entries instead of failing.
//
// Version supports optimistic concurrency on updates. Two overlapping
// read-modify-write sequences (say, two favorite-adds) would otherwise race
// and silently lose one write; the repository only applies an update when
// the stored version still matches the one the caller read.
type User struct {
	Email           string   `json:"email"           db:"email"`
	Name            string   `json:"name"            db:"name"`
	Password        string   `json:"-"               db:"password"` // bcrypt hash, never serialized
	Location        string   `json:"location"        db:"location"` // free text, may be empty
	ProfileImageURL string   `json:"profileImageUrl" db:"profile_image_url"`
	Contacts        []string `json:"contacts"`        // emails of other users
	FavoriteSpotIDs []string `json:"favoriteSpotIds"` // StudySpot.ID values
	Version         int64    `json:"-"               db:"version"`
}

// HasContact reports whether the given email is already in the contact list.
func (u *User) HasContact(email string) bool {
	for _, c := range u.Contacts {
		if c == email {
			return true
		}
	}
	return false
}

// HasFavorite reports whether the given spot ID is already a favorite.
func (u *User) HasFavorite(spotID string) bool {
	for _, id := range u.FavoriteSpotIDs {
		if id == spotID {
			return true
		}
	}
	return false
}
