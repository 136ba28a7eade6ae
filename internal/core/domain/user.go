package domain

// UserID is supplied by the caller and trusted as-is.
type UserID int64

type User struct {
	ID      UserID `db:"id" json:"id"`
	Balance int64  `db:"balance" json:"balance"`
}

// UserProfile is a user's balance together with everything they hold.
type UserProfile struct {
	User     User          `json:"user"`
	Holdings []HoldingView `json:"holdings"`
}
