package model

// StudySpot is a bookable-or-not study location on campus.
//
// Spot rows are seeded once at first startup and treated as read-only
// reference data afterwards — the application never mutates or deletes them.
//
// IsFree means "no reservation or cost required to sit down", not free as in
// price. The distinction matters for the search filter: freeOnly=true keeps
// only spots you can walk into.
type StudySpot struct {
	ID                 string `json:"id"                 db:"id"`
	Name               string `json:"name"               db:"name"`
	Location           string `json:"location"           db:"location"` // building/room descriptor
	IsGroupWorkAllowed bool   `json:"isGroupWorkAllowed" db:"is_group_work_allowed"`
	IsFree             bool   `json:"isFree"             db:"is_free"`
}
