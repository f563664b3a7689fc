package session

type OpenSessionPayload struct {
	BookID int `json:"book_id" validate:"required,min=1"`
}

type JumpPayload struct {
	LocationToken string `json:"location_token" mod:"trim" validate:"required,location,max=2048"`
}

type CommandPayload struct {
	Type      string `json:"type" validate:"required,oneof=turn_page search find_next find_previous refresh_highlights checkpoint"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=next prev"`
	Query     string `json:"query,omitempty" mod:"trim" validate:"max=500"`
}

type CreateNotePayload struct {
	Body  string `json:"body" validate:"max=10000"`
	Color string `json:"color" default:"yellow" validate:"oneof=yellow green blue pink purple"`
}
