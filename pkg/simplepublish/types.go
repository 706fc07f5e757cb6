package simplepublish

import (
	"strings"
	"time"
)

// Category is the closed set of content kinds.
type Category string

// Category constants (typed).
const (
	CategoryArticle Category = "Article"
	CategoryBook    Category = "Book"
	CategoryProduct Category = "Product"
)

// categoryInfo is everything a call site needs to know about a category.
type categoryInfo struct {
	table   string
	aliases []string
}

// categories is the single lookup table for category dispatch.
var categories = map[Category]categoryInfo{
	CategoryArticle: {table: "articles", aliases: []string{"article", "articles", "blog", "blogs"}},
	CategoryBook:    {table: "books", aliases: []string{"book", "books"}},
	CategoryProduct: {table: "products", aliases: []string{"product", "products"}},
}

// Categories returns every category in a stable order.
func Categories() []Category {
	return []Category{CategoryArticle, CategoryBook, CategoryProduct}
}

// ParseCategory resolves a category name or alias, case-insensitively.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", Validationf("category is required")
	}
	for c, info := range categories {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
		for _, alias := range info.aliases {
			if alias == name {
				return c, nil
			}
		}
	}
	return "", Validationf("invalid category %q", s)
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	_, ok := categories[c]
	return ok
}

// Table returns the relational table backing the category.
func (c Category) Table() string {
	return categories[c].table
}

func (c Category) String() string {
	return string(c)
}

// ContentItem is a published article, book or product.
//
// CoverKey and PDFKey are object store keys; an empty string means the asset
// is absent.
type ContentItem struct {
	ID        int64     `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	CoverKey  string    `json:"coverKey,omitempty"`
	PDFKey    string    `json:"pdfKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContentPatch carries the fields to change on update. Nil means unchanged.
type ContentPatch struct {
	Title    *string
	Author   *string
	Genre    *string
	Summary  *string
	Content  *string
	CoverKey *string
	PDFKey   *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ContentPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Genre == nil && p.Summary == nil &&
		p.Content == nil && p.CoverKey == nil && p.PDFKey == nil
}

// Apply copies the set fields of p onto item.
func (p ContentPatch) Apply(item *ContentItem) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Author != nil {
		item.Author = *p.Author
	}
	if p.Genre != nil {
		item.Genre = *p.Genre
	}
	if p.Summary != nil {
		item.Summary = *p.Summary
	}
	if p.Content != nil {
		item.Content = *p.Content
	}
	if p.CoverKey != nil {
		item.CoverKey = *p.CoverKey
	}
	if p.PDFKey != nil {
		item.PDFKey = *p.PDFKey
	}
}

// ProfileID is the id of the singleton profile row.
const ProfileID = 1

// Profile is the singleton site profile.
type Profile struct {
	ID        int64     `json:"id"`
	AvatarKey string    `json:"avatarKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListOptions bounds a list query. Zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// ContentItemView is a ContentItem plus the public URLs of its assets.
type ContentItemView struct {
	ContentItem
	CoverURL *string `json:"coverUrl"`
	PDFURL   *string `json:"pdfUrl"`
}

// ProfileView is the profile as exposed to clients.
type ProfileView struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	AvatarKey string     `json:"avatarKey,omitempty"`
	AvatarURL *string    `json:"avatarUrl"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}
