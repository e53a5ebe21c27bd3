package dto

// ── Rooms ──

// CreateRoomRequest room creation.
type CreateRoomRequest struct {
	Name        string `json:"name"         binding:"required,min=1,max=100"`
	Building    string `json:"building"     binding:"omitempty,max=100"`
	Capacity    int    `json:"capacity"     binding:"omitempty,min=0"`
	Equipment   string `json:"equipment"`
	IsAvailable *bool  `json:"is_available"`
}

// UpdateRoomRequest partial room update.
type UpdateRoomRequest struct {
	Name        *string `json:"name"         binding:"omitempty,min=1,max=100"`
	Building    *string `json:"building"     binding:"omitempty,max=100"`
	Capacity    *int    `json:"capacity"     binding:"omitempty,min=0"`
	Equipment   *string `json:"equipment"`
	IsAvailable *bool   `json:"is_available"`
}

// RoomResponse room view.
type RoomResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Building    string `json:"building,omitempty"`
	Capacity    int    `json:"capacity"`
	Equipment   string `json:"equipment,omitempty"`
	IsAvailable bool   `json:"is_available"`
}
