package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Listing is an ad posted for barter.
type Listing struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	ImageMime   string    `json:"image_mime,omitempty"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	OwnerName     string `json:"owner,omitempty"`
	ProposalCount int    `json:"proposal_count"`
}

// HasPhoto reports whether an image was uploaded for the listing.
func (l Listing) HasPhoto() bool {
	return l.ImageMime != ""
}

// Categories.
const (
	CategoryElectronics = "electronics"
	CategoryClothing    = "clothing"
	CategoryBooks       = "books"
	CategorySports      = "sports"
	CategoryFurniture   = "furniture"
	CategoryOther       = "other"
)

// Conditions.
const (
	ConditionNew     = "new"
	ConditionUsed    = "used"
	ConditionLikeNew = "like_new"
)

// Categories lists the category values in display order.
var Categories = []string{
	CategoryElectronics,
	CategoryClothing,
	CategoryBooks,
	CategorySports,
	CategoryFurniture,
	CategoryOther,
}

// Conditions lists the condition values in display order.
var Conditions = []string{
	ConditionNew,
	ConditionUsed,
	ConditionLikeNew,
}

// Title length bounds, counted in runes after trimming.
const (
	MinTitleLength = 5
	MaxTitleLength = 200
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	return contains(Categories, c)
}

// ValidCondition reports whether c is a known condition.
func ValidCondition(c string) bool {
	return contains(Conditions, c)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ListingInput holds the owner-editable fields of a listing.
type ListingInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
}

// Normalize trims surrounding whitespace from the text fields.
func (in *ListingInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

// Validate checks the title length, the enum fields and the image URL.
// Call Normalize first.
func (in *ListingInput) Validate() error {
	n := len([]rune(in.Title))
	if n < MinTitleLength {
		return fmt.Errorf("%w: title must be at least %d characters", ErrValidation, MinTitleLength)
	}
	if n > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrValidation, MaxTitleLength)
	}
	if !ValidCategory(in.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, in.Category)
	}
	if !ValidCondition(in.Condition) {
		return fmt.Errorf("%w: unknown condition %q", ErrValidation, in.Condition)
	}
	if in.ImageURL != "" {
		u, err := url.Parse(in.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: image_url must be an http(s) URL", ErrValidation)
		}
	}
	return nil
}

// ListingFilter selects listings for browse and search. Only active listings
// are ever returned.
type ListingFilter struct {
	Text      string
	Category  string
	Condition string
	Limit     int
	Offset    int
}

// ListingPage is one page of search results.
type ListingPage struct {
	Listings []Listing `json:"results"`
	Total    int       `json:"count"`
}
