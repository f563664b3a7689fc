package bookmarks

type CreateBookmarkPayload struct {
	LocationToken string `json:"location_token" mod:"trim" validate:"required,location,max=2048"`
	Preview       string `json:"preview" mod:"trim" validate:"max=1000"`
}

type CreateNotePayload struct {
	LocationToken string `json:"location_token" mod:"trim" validate:"required,location,max=2048"`
	Preview       string `json:"preview" mod:"trim" validate:"max=1000"`
	Body          string `json:"body" validate:"max=10000"`
	Color         string `json:"color" default:"yellow" validate:"oneof=yellow green blue pink purple"`
}

type UpdateNotePayload struct {
	Body  *string `json:"body,omitempty" validate:"omitempty,max=10000"`
	Color *string `json:"color,omitempty" validate:"omitempty,oneof=yellow green blue pink purple"`
}
