package models

// GlobalRoom is the well-known room every connection joins. It always exists
// and cannot be deleted or left.
const GlobalRoom = "global"

// RoomSummary is the API-facing view of a room.
type RoomSummary struct {
	Name      string `json:"name" db:"name"`
	CreatedBy string `json:"createdBy" db:"created_by"`
	CreatedAt int64  `json:"createdAt" db:"created_at"`
	Count     int    `json:"count"`
}
