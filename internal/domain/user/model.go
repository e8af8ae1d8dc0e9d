package user

// User is a community member listed by the feed.
type User struct {
	ID           string
	Name         string
	Email        string
	AvatarURL    string
	FavoriteTeam string
}
