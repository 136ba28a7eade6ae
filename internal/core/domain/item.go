package domain

import "strings"

type ItemID int64

type Item struct {
	ID         ItemID `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Price      int64  `db:"price" json:"price"`
	Stock      int64  `db:"stock" json:"stock"`
	ArtworkRef string `db:"artwork_ref" json:"artwork_ref"`
}

// NewItem is the admin input for a catalog entry.
type NewItem struct {
	Name       string
	Price      int64
	Stock      int64
	ArtworkRef string
}

// Validate normalises the name and checks price, stock and name.
func (n *NewItem) Validate() error {
	n.Name = strings.TrimSpace(n.Name)

	var fields []FieldError
	if n.Name == "" {
		fields = append(fields, FieldError{Field: "name", Message: "must not be empty"})
	}
	if n.Price <= 0 {
		fields = append(fields, FieldError{Field: "price", Message: "must be greater than 0"})
	}
	if n.Stock < 0 {
		fields = append(fields, FieldError{Field: "stock", Message: "must not be negative"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
