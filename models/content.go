package models

import "time"

// Post is a top-level content entry published in a community.
type Post struct {
	ID           string
	AttributedTo string
	Community    string
	Name         string
	Content      string
	Deleted      bool
	Published    time.Time
	Updated      time.Time
}

// Comment is a reply to a post or to another comment.
type Comment struct {
	ID           string
	AttributedTo string
	Community    string
	InReplyTo    string
	Content      string
	Deleted      bool
	Published    time.Time
}

// PostOrComment is the unit votes and deletions apply to. Exactly one
// of the two fields is set.
type PostOrComment struct {
	Post    *Post
	Comment *Comment
}

// ID returns the identifier of whichever entity is set.
func (pc *PostOrComment) ID() string {
	if pc.Post != nil {
		return pc.Post.ID
	}
	return pc.Comment.ID
}

// CommunityIRI returns the community the content belongs to.
func (pc *PostOrComment) CommunityIRI() string {
	if pc.Post != nil {
		return pc.Post.Community
	}
	return pc.Comment.Community
}
