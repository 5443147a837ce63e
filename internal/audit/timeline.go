package audit

import "time"

// TimelineFilters menampung filter dasar untuk audit timeline. Setiap query
// selalu dibatasi pada satu organisasi.
type TimelineFilters struct {
	OrganizationID int64
	From           time.Time
	To             time.Time
	ActorID        int64
	Entity         string
	Action         string
	Page           int
	PageSize       int
}

// TimelineRow mewakili satu baris audit timeline.
type TimelineRow struct {
	ID       string         `json:"id"`
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
