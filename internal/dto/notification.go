package dto

// ── Notifications ──

// NotificationListRequest list parameters.
type NotificationListRequest struct {
	PaginationRequest
	UnreadOnly bool `form:"unread"`
}

// NotificationResponse notification view.
type NotificationResponse struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	IsRead      bool        `json:"is_read"`
	RelatedType string      `json:"related_type,omitempty"`
	RelatedID   string      `json:"related_id,omitempty"`
	Payload     interface{} `json:"payload,omitempty"`
	CreatedAt   string      `json:"created_at"`
}

// UnreadCountResponse unread counter.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// MarkAllReadResponse result of read-all.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
