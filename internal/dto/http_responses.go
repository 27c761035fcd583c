package dto

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	AttendeeNotFound   = "ATTENDEE_NOT_FOUND"
	RegistrationClosed = "REGISTRATION_CLOSED"
	SoldOut            = "SOLD_OUT"
	PaymentRejected    = "PAYMENT_REJECTED"
	AlreadyProcessed   = "ALREADY_PROCESSED"
)

type RegisterAttendeeRequest struct {
	Type       string `json:"type" form:"type" validate:"required,attendeetype"`
	Name       string `json:"name" form:"name" validate:"required,min=3,max=255"`
	Email      string `json:"email" form:"email" validate:"required,email"`
	Mobile     string `json:"mobile" form:"mobile" validate:"required,mobile"`
	TShirtSize string `json:"tshirt_size" form:"tshirt_size" validate:"max=8"`
}

type AttendeeResponse struct {
	UUID      string     `json:"uuid"`
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Mobile    string     `json:"mobile"`
	IsPaid    bool       `json:"is_paid"`
	AttendAt  *time.Time `json:"attend_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type RegistrationResponse struct {
	Attendee   AttendeeResponse `json:"attendee"`
	Message    string           `json:"message"`
	PaymentURL string           `json:"payment_url,omitempty"`
}

type PaymentContextResponse struct {
	Attendee AttendeeResponse `json:"attendee"`
	Price    string           `json:"price"`
}

// PaymentCallbackRequest mirrors the gateway's form post. The opaque opt_a
// field carries the attendee uuid set when the payment was initiated.
type PaymentCallbackRequest struct {
	PayStatus     string `form:"pay_status"`
	CardType      string `form:"card_type"`
	TransactionID string `form:"transaction_id"`
	Amount        string `form:"amount"`
	OptA          string `form:"opt_a"`
}

type UpdateLinkRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type SignInRequest struct {
	HashCode string `json:"hash_code" form:"hash_code" validate:"required,min=20"`
}

type UpdateProfileRequest struct {
	Name             string `json:"name" form:"name" validate:"required,min=3,max=255"`
	Profession       string `json:"profession" form:"profession" validate:"required,max=255"`
	SocialProfileURL string `json:"social_profile_url" form:"social_profile_url" validate:"required,url"`
	AddressLine1     string `json:"address_line_1" form:"address_line_1" validate:"max=255"`
	AddressLine2     string `json:"address_line_2" form:"address_line_2" validate:"max=255"`
	City             string `json:"city" form:"city" validate:"max=128"`
	District         string `json:"district" form:"district" validate:"max=128"`
}

// ProfileUpdateMessage is the payload published to the notification queue
// when an attendee asks for their profile-update link.
type ProfileUpdateMessage struct {
	AttendeeID int64  `json:"attendee_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	UpdateURL  string `json:"update_url"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

// Door-staff verification payloads keep the numeric status in the body so
// scanner clients can switch on it without reading HTTP headers.
type VerifyResponse struct {
	Status     int               `json:"status"`
	ApproveURL string            `json:"approve_url,omitempty"`
	Data       *AttendeeResponse `json:"data,omitempty"`
}

type TShirtResponse struct {
	TShirt string `json:"t-shirt"`
}

type ApproveResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(http.StatusBadRequest, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(http.StatusInternalServerError, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func AttendeeNotFoundError(c *ginext.Context) {
	c.JSON(http.StatusNotFound, Response{
		Status: "error",
		Error: &Error{
			Code: AttendeeNotFound,
			Desc: "Attendee is not available!",
		},
	})
}

func RegistrationClosedError(c *ginext.Context, desc string) {
	BadResponseError(c, RegistrationClosed, desc)
}

func SoldOutError(c *ginext.Context, desc string) {
	BadResponseError(c, SoldOut, desc)
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}

func InfoResponse(c *ginext.Context, code, message string) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   map[string]string{"code": code, "message": message},
	})
}
