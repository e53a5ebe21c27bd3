package model

// Room a defence room (table rooms)
type Room struct {
	RoomID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"room_id"`
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex"         json:"name"`
	Building    string `gorm:"type:varchar(100)"                              json:"building,omitempty"`
	Capacity    int    `gorm:"not null;default:0"                             json:"capacity"`
	Equipment   string `gorm:"type:text"                                      json:"equipment,omitempty"`
	IsAvailable bool   `gorm:"not null;default:true"                          json:"is_available"`
	SoftDeleteModel
}

// TableName overrides the table name.
func (Room) TableName() string { return "rooms" }
