package models

// FollowResult - результат подписки. Повторная подписка и подписка на себя
// не ошибки, а ожидаемые исходы без побочных эффектов.
type FollowResult int

const (
	FollowCreated FollowResult = iota
	FollowAlreadyFollowing
	FollowRejectedSelf
)

func (r FollowResult) String() string {
	switch r {
	case FollowCreated:
		return "created"
	case FollowAlreadyFollowing:
		return "already_following"
	case FollowRejectedSelf:
		return "rejected_self"
	}
	return "unknown"
}

func (r FollowResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// FollowingStatus для страницы профиля: Anonymous (нет зрителя) или Following
type FollowingStatus interface {
	followingStatus()
}

type Anonymous struct{}

type Following struct {
	Value bool
}

func (Anonymous) followingStatus() {}
func (Following) followingStatus() {}
