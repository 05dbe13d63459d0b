package model

import "time"

type Article struct {
	ID              string    `json:"_id"`
	Topic           string    `json:"topic"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	AuthorName      string    `json:"author_name"`
	AuthorID        string    `json:"author_id"`
	DateOfPublish   time.Time `json:"date_of_publish"`
	Tags            []string  `json:"tags"`
	ArticleLink     string    `json:"article_link,omitempty"`
	ImageLink       string    `json:"image_link"`
	Likes           int       `json:"likes"`
	Dislikes        int       `json:"dislikes"`
	LikedUserIDs    []string  `json:"liked_userids"`
	DislikedUserIDs []string  `json:"disliked_userids"`
}

// Direction is the kind of vote a user casts on an article.
type Direction string

const (
	Like    Direction = "like"
	Dislike Direction = "dislike"
)

func (d Direction) Valid() bool {
	return d == Like || d == Dislike
}

// Opposite returns the direction a vote in d displaces.
func (d Direction) Opposite() Direction {
	switch d {
	case Like:
		return Dislike
	case Dislike:
		return Like
	}
	return ""
}

type Role string

const (
	RoleUser   Role = "user"
	RoleExpert Role = "expert"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleExpert || r == RoleAdmin
}

type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Blocked      bool      `json:"blocked"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Name   string
	Role   Role
}
