package model

import "time"

const (
	TypeAttendee  = "attendee"
	TypeGuest     = "guest"
	TypeSponsor   = "sponsor"
	TypeVolunteer = "volunteer"
)

const (
	PaymentValid  = "VALID"
	PaymentFailed = "FAILED"
)

type Attendee struct {
	ID               int64      `db:"id" json:"id"`
	UUID             string     `db:"uuid" json:"uuid"`
	HashCode         string     `db:"hash_code" json:"-"`
	Type             string     `db:"type" json:"type"`
	Name             string     `db:"name" json:"name"`
	Email            string     `db:"email" json:"email"`
	Mobile           string     `db:"mobile" json:"mobile"`
	IsPaid           bool       `db:"is_paid" json:"is_paid"`
	AttendAt         *time.Time `db:"attend_at" json:"attend_at,omitempty"`
	Profession       string     `db:"profession" json:"profession,omitempty"`
	SocialProfileURL string     `db:"social_profile_url" json:"social_profile_url,omitempty"`
	AddressLine1     string     `db:"address_line_1" json:"address_line_1,omitempty"`
	AddressLine2     string     `db:"address_line_2" json:"address_line_2,omitempty"`
	City             string     `db:"city" json:"city,omitempty"`
	District         string     `db:"district" json:"district,omitempty"`
	Misc             string     `db:"misc" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// TicketBuyer reports whether the attendee goes through the payment phase.
func (a *Attendee) TicketBuyer() bool {
	return a.Type == TypeAttendee
}

// Eligible reports whether the attendee may pass the door: non-ticket types
// always, ticket buyers only after payment.
func (a *Attendee) Eligible() bool {
	return !a.TicketBuyer() || a.IsPaid
}

type Payment struct {
	ID            int64     `db:"id" json:"id"`
	AttendeeID    int64     `db:"attendee_id" json:"attendee_id"`
	CardType      string    `db:"card_type" json:"card_type"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	Amount        string    `db:"amount" json:"amount"`
	Status        string    `db:"status" json:"status"`
	APIResponse   string    `db:"api_response" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
