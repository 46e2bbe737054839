package models

// EntryKind distinguishes regular programs from publicity interstitials.
type EntryKind string

// Program entry kinds.
const (
	KindRegular   EntryKind = "regular"
	KindPublicity EntryKind = "publicity"
)
