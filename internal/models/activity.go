package models

import "time"

// Activity is a check-in posted to the feed.
type Activity struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Username  string      `json:"username"`
	PlaceName string      `json:"placeName"`
	Caption   string      `json:"caption,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Reactions ReactionSet `json:"reactions"`
}

type Pagination struct {
	Page       int `json:"page"`
	TotalCount int `json:"totalCount"`
}

// ListResponse is one page returned by a list endpoint.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type AddReactionRequest struct {
	ItemID string `json:"itemId"`
	Kind   string `json:"kind"`
}
