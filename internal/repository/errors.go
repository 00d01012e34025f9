package repository

import "fmt"

// StateError reports a status transition the lifecycle does not allow, or
// one that lost a conditional update race. The stored status is unchanged.
type StateError struct {
	PostID int64
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("post %d cannot move from %s to %s", e.PostID, e.From, e.To)
}

// ConflictError reports an operation that is valid in principle but not in
// the post's current state, such as cancelling a post mid-publish.
type ConflictError struct {
	PostID int64
	Status string
	Op     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s post %d while %s", e.Op, e.PostID, e.Status)
}
