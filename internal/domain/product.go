package domain

// Product is a catalog entry as served by the storefront API. The storefront
// only reads products.
type Product struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Price       int64    `json:"price" validate:"gte=0"`
	CategoryID  string   `json:"category_id,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	Rating      float64  `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount int      `json:"review_count" validate:"gte=0"`
	Featured    bool     `json:"featured"`
}

// Category groups products in the catalog.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// ProductFilter narrows a catalog listing. Zero values mean "no filter".
type ProductFilter struct {
	Featured   *bool
	CategoryID string
	Search     string
}
