package domain

import "strings"

// Category selects the prompt deck of a room
type Category string

const (
	CategoryConfessions    Category = "confessions"
	CategoryDare           Category = "dare"
	CategoryToxic          Category = "toxic"
	CategoryChill          Category = "chill"
	CategoryWhosMoreLikely Category = "whos-more-likely"
	CategoryBuildYourOwn   Category = "build-your-own" // custom prompts written by the players
)

// Categories lists every playable category in display order.
var Categories = []Category{
	CategoryConfessions,
	CategoryDare,
	CategoryToxic,
	CategoryChill,
	CategoryWhosMoreLikely,
	CategoryBuildYourOwn,
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// IsCustom returns true if prompts are submitted by the players
func (c Category) IsCustom() bool {
	return c == CategoryBuildYourOwn
}

// HasVoting returns true if revealed prompts are voted on
func (c Category) HasVoting() bool {
	return c == CategoryWhosMoreLikely
}

// Valid returns true for known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}
