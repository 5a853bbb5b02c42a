package model

type CreatePipeline struct {
	Name      string                 `json:"name"`
	IsPrimary bool                   `json:"is_primary"`
	MetaData  map[string]interface{} `json:"meta_data"`
}

type UpdatePipeline struct {
	Name      string `json:"name"`
	IsPrimary *bool  `json:"is_primary"`
}
