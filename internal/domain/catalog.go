package domain

import "time"

type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ProductOption struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type ProductVariant struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	AvailableForSale bool             `json:"availableForSale"`
	SelectedOptions  []SelectedOption `json:"selectedOptions"`
	Price            Money            `json:"price"`
	CompareAtPrice   *Money           `json:"compareAtPrice,omitempty"`
}

type PriceRange struct {
	MaxVariantPrice Money `json:"maxVariantPrice"`
	MinVariantPrice Money `json:"minVariantPrice"`
}

type Product struct {
	ID               string           `json:"id"`
	Handle           string           `json:"handle"`
	AvailableForSale bool             `json:"availableForSale"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	DescriptionHTML  string           `json:"descriptionHtml"`
	Options          []ProductOption  `json:"options"`
	PriceRange       PriceRange       `json:"priceRange"`
	Variants         []ProductVariant `json:"variants"`
	FeaturedImage    Image            `json:"featuredImage"`
	Images           []Image          `json:"images"`
	SEO              SEO              `json:"seo"`
	Tags             []string         `json:"tags"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (p *Product) Variant(id string) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// MerchandiseFromVariant builds the immutable line reference for a variant of product.
func MerchandiseFromVariant(v ProductVariant, p *Product) Merchandise {
	m := Merchandise{
		VariantID:       v.ID,
		Title:           v.Title,
		SelectedOptions: append([]SelectedOption(nil), v.SelectedOptions...),
	}
	if p != nil {
		m.ProductID = p.ID
		m.ProductHandle = p.Handle
		m.ProductTitle = p.Title
		m.FeaturedImage = p.FeaturedImage
	}
	return m
}

type Collection struct {
	Handle      string    `json:"handle"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SEO         SEO       `json:"seo"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Path        string    `json:"path"`
}

type Menu struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

type Page struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Body        string    `json:"body"`
	BodySummary string    `json:"bodySummary"`
	SEO         *SEO      `json:"seo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Author struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	ContentHTML string    `json:"contentHtml"`
	Excerpt     string    `json:"excerpt"`
	PublishedAt time.Time `json:"publishedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Tags        []string  `json:"tags"`
	Image       *Image    `json:"image,omitempty"`
	Author      Author    `json:"author"`
	SEO         SEO       `json:"seo"`
	BlogHandle  string    `json:"blogHandle,omitempty"`
}

type Blog struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Handle   string    `json:"handle"`
	SEO      SEO       `json:"seo"`
	Articles []Article `json:"articles,omitempty"`
}

type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
}

type ArticlePage struct {
	Articles []Article `json:"articles"`
	PageInfo PageInfo  `json:"pageInfo"`
}
