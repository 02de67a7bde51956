package domain

// Reservation is the resolver's view of an upstream Cloudbeds reservation:
// just the facts check-in needs, with ReservationID always the native
// Cloudbeds ID even when the caller looked it up by a channel reference.
type Reservation struct {
	ReservationID string `json:"reservation_id"`
	GuestName     string `json:"guest_name,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
	CheckInDate   string `json:"check_in_date,omitempty"`
	CheckOutDate  string `json:"check_out_date,omitempty"`
	Status        string `json:"status,omitempty"`
	AccessCode    string `json:"access_code,omitempty"` // best-effort, may be empty
}
