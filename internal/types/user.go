package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultCountry is applied whenever an address is stored or repaired
// without an explicit country.
const DefaultCountry = "Australia"

// User is the central account entity. PasswordHash and RefreshToken are never
// serialized to any external representation.
type User struct {
	ID           uuid.UUID        `json:"id"`
	Username     string           `json:"username"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	Role         string           `json:"role"`
	Phone        *string          `json:"phone,omitempty"`
	Address      *AddressDocument `json:"address,omitempty"`
	Avatar       *Avatar          `json:"avatar,omitempty"`
	Wishlist     []string         `json:"wishlist"`
	RefreshToken string           `json:"-"`
	IsActive     bool             `json:"is_active"`
	LastLogin    *time.Time       `json:"last_login,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Avatar points at an image held by the external image store.
type Avatar struct {
	StoreID string `json:"store_id"`
	URL     string `json:"url"`
}

// Address is the structured shape the address column must converge to.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// AddressDocument is the storage-boundary representation of the address
// column. A legacy defect allowed the column to hold a JSON-encoded string
// instead of an object, so the decoded value is a tagged union: exactly one
// of Structured or Raw is set. New code only ever writes Structured; the
// migration normalizer repairs Raw values opportunistically on read/write.
type AddressDocument struct {
	Structured *Address
	Raw        string
}

func StructuredAddress(a Address) *AddressDocument {
	return &AddressDocument{Structured: &a}
}

// IsRaw reports whether the document still carries the legacy string shape.
func (d *AddressDocument) IsRaw() bool {
	return d != nil && d.Structured == nil && d.Raw != ""
}

func (d *AddressDocument) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = AddressDocument{}
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*d = AddressDocument{Raw: raw}
		return nil
	}
	var addr Address
	if err := json.Unmarshal(trimmed, &addr); err != nil {
		return err
	}
	*d = AddressDocument{Structured: &addr}
	return nil
}

func (d AddressDocument) MarshalJSON() ([]byte, error) {
	if d.Structured != nil {
		return json.Marshal(d.Structured)
	}
	if d.Raw != "" {
		// Legacy value left in place when repair failed; still usable data.
		return json.Marshal(d.Raw)
	}
	return []byte("null"), nil
}

// UpdateProfileParams carries the mutable profile fields. Pointers distinguish
// "not provided" from an explicit empty value, allowing partial updates.
type UpdateProfileParams struct {
	Username *string          `json:"username,omitempty"`
	Phone    *string          `json:"phone,omitempty"`
	Address  *AddressDocument `json:"address,omitempty"`
	Avatar   *Avatar          `json:"-"`
}

func (p UpdateProfileParams) IsEmpty() bool {
	return p.Username == nil && p.Phone == nil && p.Address == nil && p.Avatar == nil
}

// ProfileProduct is the reduced product view embedded in profile responses.
type ProfileProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// WishlistItem is the expanded product view returned by the wishlist endpoint.
type WishlistItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	OldPrice    *float64 `json:"old_price,omitempty"`
	Image       string   `json:"image"`
	Category    string   `json:"category"`
	Stock       int      `json:"stock"`
	IsAvailable bool     `json:"is_available"`
	Ratings     float64  `json:"ratings"`
}

// UserProfile is a User with the wishlist expanded to product summaries.
type UserProfile struct {
	User
	WishlistProducts []ProfileProduct `json:"wishlist_products"`
}

// UserPage is one page of the admin listing.
type UserPage struct {
	Users []User `json:"users"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
}

// ListUsersFilter narrows the admin listing. Search matches username OR email
// case-insensitively; Role is an exact match when set.
type ListUsersFilter struct {
	Page   int
	Limit  int
	Search string
	Role   string
}
