package model

import "time"

// UserDetails holds a user's profile and address information as stored in the
// `user_details` table.  A user may have several rows (e.g. shipping and
// billing addresses) but at most one of them is the default; setting a new
// default unsets the previous one.
//
// Fields:
//
//	ID           – primary key identifier.
//	UserID       – owning user; rows are removed when the user is hard-deleted.
//	FirstName    – given name.
//	LastName     – family name.
//	AddressLine1 – first street address line.
//	AddressLine2 – optional second street address line.
//	City         – city name.
//	State        – state or province.
//	PostalCode   – postal or ZIP code.
//	Country      – country name or code.
//	Phone        – contact phone number.
//	IsDefault    – whether this row is the user's default address.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type UserDetails struct {
	ID           uint64    // user_details.id
	UserID       uint64    // user_details.user_id
	FirstName    string    // user_details.first_name
	LastName     string    // user_details.last_name
	AddressLine1 string    // user_details.address_line1
	AddressLine2 string    // user_details.address_line2
	City         string    // user_details.city
	State        string    // user_details.state
	PostalCode   string    // user_details.postal_code
	Country      string    // user_details.country
	Phone        string    // user_details.phone
	IsDefault    bool      // user_details.is_default
	CreatedAt    time.Time // user_details.created_at
	UpdatedAt    time.Time // user_details.updated_at
}
