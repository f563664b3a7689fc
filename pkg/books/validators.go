package books

type RegisterBookPayload struct {
	Path string `json:"path" mod:"trim" validate:"required,abspath,max=4096"`
}

type ListBooksQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Format *string `query:"format" json:"format,omitempty" validate:"omitempty,oneof=epub cbz pdf txt"`
}
