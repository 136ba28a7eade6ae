package domain

type Holding struct {
	UserID   UserID `db:"user_id" json:"user_id"`
	ItemID   ItemID `db:"item_id" json:"item_id"`
	Quantity int64  `db:"quantity" json:"quantity"`
}

// HoldingView is a holding joined with the catalog entry it refers to.
type HoldingView struct {
	ItemID     ItemID `db:"item_id" json:"item_id"`
	Name       string `db:"name" json:"name"`
	ArtworkRef string `db:"artwork_ref" json:"artwork_ref"`
	Quantity   int64  `db:"quantity" json:"quantity"`
}
