package model

import "time"

// Personnel is a member of the station.  Check-in and rank checks resolve a
// person by the roll number (Stammrollennummer), which is unique.
//
// Fields:
//  ID                – personnel.id
//  Stammrollennummer – external roll number used at the kiosk.
//  Vorname/Nachname  – first and last name.
//  Dienstgrad        – rank code, see RankInfo.
//  GroupID           – optional group membership.
//  IsActive          – inactive members cannot check in but can still check out.
type Personnel struct {
	ID                uint64    `json:"id"`                // personnel.id
	Stammrollennummer string    `json:"stammrollennummer"` // personnel.stammrollennummer
	Vorname           string    `json:"vorname"`           // personnel.vorname
	Nachname          string    `json:"nachname"`          // personnel.nachname
	Dienstgrad        string    `json:"dienstgrad"`        // personnel.dienstgrad
	GroupID           *uint64   `json:"group_id"`          // personnel.group_id (nullable)
	IsActive          bool      `json:"is_active"`         // personnel.is_active
	CreatedAt         time.Time `json:"created_at"`        // personnel.created_at
}

// FullName returns "Vorname Nachname".
func (p Personnel) FullName() string { return p.Vorname + " " + p.Nachname }
