package models

import (
	id "cinelog/pkg/domain"
)

// Actor is the authenticated user performing a social action.
type Actor struct {
	ID       id.UserID
	Username string
}

// Follow is the state of one follower -> following edge. Unfollowing keeps
// the row and clears IsFollowing so a later follow reactivates it.
type Follow struct {
	FollowerID  id.UserID
	FollowingID id.UserID
	IsFollowing bool
}

// ReviewLike is the state of one user -> review like edge.
type ReviewLike struct {
	UserID   id.UserID
	ReviewID id.ReviewID
	IsLiked  bool
}

type FollowResponse struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
	IsFollowing bool   `json:"is_following"`
}

func (f Follow) ToResponse() FollowResponse {
	return FollowResponse{
		FollowerID:  f.FollowerID.String(),
		FollowingID: f.FollowingID.String(),
		IsFollowing: f.IsFollowing,
	}
}

type ReviewLikeResponse struct {
	UserID   string `json:"user_id"`
	ReviewID string `json:"review_id"`
	IsLiked  bool   `json:"is_liked"`
}

func (l ReviewLike) ToResponse() ReviewLikeResponse {
	return ReviewLikeResponse{
		UserID:   l.UserID.String(),
		ReviewID: l.ReviewID.String(),
		IsLiked:  l.IsLiked,
	}
}

// FollowingUserResponse is one entry of GET /users/me/followings.
type FollowingUserResponse struct {
	FollowingID string `json:"following_id"`
	Username    string `json:"username"`
}

// FollowerUserResponse is one entry of GET /users/me/followers.
type FollowerUserResponse struct {
	FollowerID string `json:"follower_id"`
	Username   string `json:"username"`
}
