package domain

import "time"

// Company is a tenant that owns user profiles and tickets.
type Company struct {
	ID        string
	Name      string
	TaxID     string
	Address   string
	Phone     string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
