package service

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"ticketbooth/internal/dto"
	"ticketbooth/internal/gate"
	"ticketbooth/internal/model"
	"ticketbooth/internal/rabbit"
	"ticketbooth/internal/repo"
	"ticketbooth/pkg/phone"
	"ticketbooth/pkg/validator"
)

type Service interface {
	ShowTicketForm(ctx *ginext.Context)
	ShowOtherForm(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	ShowPayment(ctx *ginext.Context)
	PaymentCallback(ctx *ginext.Context)
	VerifyAttendee(ctx *ginext.Context)
	SearchAttendee(ctx *ginext.Context)
	ApproveAttendance(ctx *ginext.Context)
	RequestUpdateLink(ctx *ginext.Context)
	SignIn(ctx *ginext.Context)
	ShowProfileForm(ctx *ginext.Context)
	UpdateProfile(ctx *ginext.Context)
}

type service struct {
	repo repo.Repository
	gate *gate.Gate
	cfg  gate.Settings
	log  *zerolog.Logger
	rbt  rabbit.Notifier
}

func NewService(repository repo.Repository, capacityGate *gate.Gate, cfg gate.Settings, logger *zerolog.Logger, rbt rabbit.Notifier) Service {
	return &service{
		repo: repository,
		gate: capacityGate,
		cfg:  cfg,
		log:  logger,
		rbt:  rbt,
	}
}

// newHashCode issues the private update-link token. 32 hex chars, immutable
// for the lifetime of the attendee.
func newHashCode() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func toAttendeeResponse(a *model.Attendee) dto.AttendeeResponse {
	return dto.AttendeeResponse{
		UUID:      a.UUID,
		Type:      a.Type,
		Name:      a.Name,
		Email:     a.Email,
		Mobile:    a.Mobile,
		IsPaid:    a.IsPaid,
		AttendAt:  a.AttendAt,
		CreatedAt: a.CreatedAt,
	}
}

// checkTicketGate applies the window/capacity checks in one fixed order:
// registration window first, capacity second. Returns false after writing
// the rejection response.
func (s *service) checkTicketGate(ctx *ginext.Context) bool {
	if !s.gate.RegistrationOpen() {
		dto.RegistrationClosedError(ctx, s.cfg.GetString("event.messages.registration_closed"))
		return false
	}

	soldOut, err := s.gate.SoldOut(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to evaluate sold-out state")
		dto.InternalServerError(ctx)
		return false
	}
	if soldOut {
		dto.SoldOutError(ctx, s.cfg.GetString("event.messages.sold_out"))
		return false
	}
	return true
}

func (s *service) ShowTicketForm(ctx *ginext.Context) {
	if !s.checkTicketGate(ctx) {
		return
	}

	dto.SuccessResponse(ctx, map[string]string{
		"type":  model.TypeAttendee,
		"price": s.cfg.GetString("event.ticket_price"),
	})
}

func (s *service) ShowOtherForm(ctx *ginext.Context) {
	attendeeType := ctx.Param("type")
	switch attendeeType {
	case model.TypeGuest, model.TypeSponsor, model.TypeVolunteer:
	default:
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Unknown attendee type")
		return
	}

	dto.SuccessResponse(ctx, map[string]string{"type": attendeeType})
}

func (s *service) Register(ctx *ginext.Context) {
	var req dto.RegisterAttendeeRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid request format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if req.Type != model.TypeAttendee {
		s.registerNonTicket(ctx, &req)
		return
	}

	if !s.checkTicketGate(ctx) {
		return
	}

	// Resume an abandoned payment instead of creating a duplicate intake.
	attendee, err := s.repo.GetAttendeeByEmail(ctx.Request.Context(), req.Email)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrAttendeeNotFound):
		attendee, err = s.createAttendee(ctx, &req)
		if err != nil {
			return
		}
	default:
		s.log.Error().Err(err).Msg("failed to look up attendee by email")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("uuid", attendee.UUID).Msg("ticket buyer registered, redirecting to payment")

	dto.SuccessCreatedResponse(ctx, dto.RegistrationResponse{
		Attendee:   toAttendeeResponse(attendee),
		Message:    s.cfg.GetString("event.messages.registration_success"),
		PaymentURL: s.cfg.GetString("event.base_url") + "/v1/payment/" + attendee.UUID,
	})
}

func (s *service) registerNonTicket(ctx *ginext.Context, req *dto.RegisterAttendeeRequest) {
	attendee, err := s.createAttendee(ctx, req)
	if err != nil {
		return
	}

	s.log.Info().
		Str("type", attendee.Type).
		Str("uuid", attendee.UUID).
		Msg("non-ticket attendee registered")

	dto.SuccessCreatedResponse(ctx, dto.RegistrationResponse{
		Attendee: toAttendeeResponse(attendee),
		Message:  s.cfg.GetString("event.messages.registration_success"),
	})
}

func (s *service) createAttendee(ctx *ginext.Context, req *dto.RegisterAttendeeRequest) (*model.Attendee, error) {
	attendee := &model.Attendee{
		UUID:     uuid.NewString(),
		HashCode: newHashCode(),
		Type:     req.Type,
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   phone.Normalize(req.Mobile),
		Misc:     req.TShirtSize,
	}

	id, err := s.repo.CreateAttendee(ctx.Request.Context(), attendee)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create attendee")
		dto.InternalServerError(ctx)
		return nil, err
	}
	attendee.ID = id
	attendee.CreatedAt = time.Now()
	return attendee, nil
}

func (s *service) ShowPayment(ctx *ginext.Context) {
	attendee, err := s.repo.GetAttendeeByUUID(ctx.Request.Context(), ctx.Param("uuid"))
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			dto.AttendeeNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to load attendee for payment page")
		dto.InternalServerError(ctx)
		return
	}

	if attendee.IsPaid {
		dto.InfoResponse(ctx, dto.AlreadyProcessed, s.cfg.GetString("event.messages.already_paid"))
		return
	}

	if !s.checkTicketGate(ctx) {
		return
	}

	dto.SuccessResponse(ctx, dto.PaymentContextResponse{
		Attendee: toAttendeeResponse(attendee),
		Price:    s.cfg.GetString("event.ticket_price"),
	})
}

// PaymentCallback reconciles a gateway post-back. Every attempt is logged
// verbatim for audit before any outcome is decided.
func (s *service) PaymentCallback(ctx *ginext.Context) {
	_ = ctx.Request.ParseForm()
	rawBody := ctx.Request.PostForm.Encode()

	s.log.Info().
		Str("ip", ctx.ClientIP()).
		Str("uri", ctx.Request.RequestURI).
		Str("body", rawBody).
		Msg("payment gateway callback received")

	var req dto.PaymentCallbackRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid callback format")
		return
	}

	// The gateway is expected to always supply a real transaction id; a
	// missing one would collapse unrelated callbacks into one duplicate
	// bucket, so it is rejected outright.
	if req.TransactionID == "" {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "transaction_id is required")
		return
	}

	attendee, err := s.repo.GetAttendeeByUUID(ctx.Request.Context(), req.OptA)
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			s.log.Info().Str("opt_a", req.OptA).Msg("callback references unknown attendee")
			dto.AttendeeNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to resolve attendee from callback")
		dto.InternalServerError(ctx)
		return
	}

	if req.PayStatus != model.PaymentValid {
		// Audit row only; the rejection outcome does not depend on it.
		_, _ = s.recordPayment(ctx, attendee, &req, model.PaymentFailed, rawBody)
		dto.BadResponseError(ctx, dto.PaymentRejected, s.cfg.GetString("event.messages.payment_error"))
		return
	}

	// The paid flip happens before the ledger check: it is idempotent, and a
	// legitimate retry of a successful callback must still confirm the state.
	// The flip itself re-checks the paid count in its transaction, so a
	// callback that would push past capacity is turned away here.
	if err := s.repo.MarkPaidTx(ctx.Request.Context(), attendee.ID, s.cfg.GetInt("event.capacity")); err != nil {
		if errors.Is(err, repo.ErrSoldOut) {
			s.log.Info().Int64("attendee_id", attendee.ID).Msg("callback rejected, ticket pool exhausted")
			_, _ = s.recordPayment(ctx, attendee, &req, model.PaymentFailed, rawBody)
			dto.SoldOutError(ctx, s.cfg.GetString("event.messages.sold_out"))
			return
		}
		s.log.Error().Err(err).Int64("attendee_id", attendee.ID).Msg("failed to mark attendee paid")
		dto.InternalServerError(ctx)
		return
	}

	duplicate, err := s.recordPayment(ctx, attendee, &req, model.PaymentValid, rawBody)
	if err != nil {
		dto.InternalServerError(ctx)
		return
	}
	if duplicate {
		dto.InfoResponse(ctx, dto.AlreadyProcessed, s.cfg.GetString("event.messages.already_paid"))
		return
	}

	s.log.Info().
		Int64("attendee_id", attendee.ID).
		Str("transaction_id", req.TransactionID).
		Msg("payment reconciled successfully")

	dto.InfoResponse(ctx, "PAYMENT_OK", s.cfg.GetString("event.messages.payment_success"))
}

// recordPayment appends a ledger row. The duplicate signal is a legitimate
// "already processed" outcome, not an error.
func (s *service) recordPayment(ctx *ginext.Context, attendee *model.Attendee, req *dto.PaymentCallbackRequest, status, rawBody string) (bool, error) {
	payment := &model.Payment{
		AttendeeID:    attendee.ID,
		CardType:      req.CardType,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Status:        status,
		APIResponse:   rawBody,
	}

	_, err := s.repo.RecordPaymentTx(ctx.Request.Context(), payment)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicatePayment) {
			s.log.Info().
				Int64("attendee_id", attendee.ID).
				Str("transaction_id", req.TransactionID).
				Msg("duplicate payment callback, already processed")
			return true, nil
		}
		s.log.Error().Err(err).Msg("failed to record payment")
		return false, err
	}
	return false, nil
}

func (s *service) VerifyAttendee(ctx *ginext.Context) {
	attendee, err := s.repo.GetEligibleByUUID(ctx.Request.Context(), ctx.Param("uuid"))
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			ctx.JSON(http.StatusNotFound, dto.VerifyResponse{Status: http.StatusNotFound})
			return
		}
		s.log.Error().Err(err).Msg("failed to verify attendee")
		dto.InternalServerError(ctx)
		return
	}

	s.respondVerify(ctx, attendee)
}

func (s *service) SearchAttendee(ctx *ginext.Context) {
	// tq selects the restricted t-shirt read path; q, when present, still
	// wins as the search term.
	tq, tshirtOnly := ctx.GetQuery("tq")
	term := ctx.Query("q")
	if term == "" {
		term = tq
	}
	if term == "" {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Search term is required")
		return
	}

	attendee, err := s.repo.SearchEligible(ctx.Request.Context(), term, phone.Normalize(term))
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			ctx.JSON(http.StatusNotFound, dto.VerifyResponse{Status: http.StatusNotFound})
			return
		}
		s.log.Error().Err(err).Msg("failed to search attendee")
		dto.InternalServerError(ctx)
		return
	}

	if tshirtOnly {
		ctx.JSON(http.StatusOK, dto.TShirtResponse{TShirt: attendee.Misc})
		return
	}

	s.respondVerify(ctx, attendee)
}

func (s *service) respondVerify(ctx *ginext.Context, attendee *model.Attendee) {
	summary := toAttendeeResponse(attendee)

	if attendee.AttendAt != nil {
		ctx.JSON(http.StatusUnauthorized, dto.VerifyResponse{
			Status: http.StatusUnauthorized,
			Data:   &summary,
		})
		return
	}

	ctx.JSON(http.StatusOK, dto.VerifyResponse{
		Status:     http.StatusOK,
		ApproveURL: s.cfg.GetString("event.base_url") + "/v1/attendees/" + attendee.UUID + "/attend",
		Data:       &summary,
	})
}

func (s *service) ApproveAttendance(ctx *ginext.Context) {
	attendee, err := s.repo.MarkAttendedTx(ctx.Request.Context(), ctx.Param("uuid"), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrAlreadyAttended):
			ctx.JSON(http.StatusBadRequest, dto.ApproveResponse{
				Code:    http.StatusBadRequest,
				Message: "Already attended",
			})
		case errors.Is(err, repo.ErrNotEligible), errors.Is(err, repo.ErrAttendeeNotFound):
			ctx.JSON(http.StatusBadRequest, dto.ApproveResponse{
				Code:    http.StatusBadRequest,
				Message: "Invalid request",
			})
		default:
			s.log.Error().Err(err).Msg("failed to approve attendance")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.log.Info().
		Str("uuid", attendee.UUID).
		Str("type", attendee.Type).
		Msg("attendance approved")

	ctx.JSON(http.StatusOK, dto.ApproveResponse{
		Code:    http.StatusOK,
		Message: "Approved successfully!",
	})
}

// RequestUpdateLink queues the profile-update-link email. Dispatch is
// fire-and-forget: a queue failure is logged and swallowed, the caller
// still gets a success response.
func (s *service) RequestUpdateLink(ctx *ginext.Context) {
	var req dto.UpdateLinkRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid request format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	attendee, err := s.repo.GetAttendeeByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Email is not registered")
			return
		}
		s.log.Error().Err(err).Msg("failed to look up attendee for update link")
		dto.InternalServerError(ctx)
		return
	}

	msg := dto.ProfileUpdateMessage{
		AttendeeID: attendee.ID,
		Email:      attendee.Email,
		Name:       attendee.Name,
		UpdateURL:  s.cfg.GetString("event.base_url") + "/v1/profile/" + attendee.HashCode,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal profile update message")
		dto.InternalServerError(ctx)
		return
	}
	if err := s.rbt.Publish(payload); err != nil {
		s.log.Warn().Err(err).Str("email", attendee.Email).Msg("failed to queue profile update link")
	}

	dto.InfoResponse(ctx, "LINK_SENT", "Successfully sent! Check your mail.")
}

func (s *service) SignIn(ctx *ginext.Context) {
	var req dto.SignInRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid request format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	attendee, err := s.repo.GetAttendeeByHashCode(ctx.Request.Context(), req.HashCode)
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid hashcode!")
			return
		}
		s.log.Error().Err(err).Msg("failed to resolve hashcode")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, map[string]string{
		"update_url": s.cfg.GetString("event.base_url") + "/v1/profile/" + attendee.HashCode,
	})
}

func (s *service) ShowProfileForm(ctx *ginext.Context) {
	attendee, err := s.repo.GetAttendeeByHashCode(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			dto.AttendeeNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to load profile form")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, map[string]any{
		"attendee":           toAttendeeResponse(attendee),
		"profession":         attendee.Profession,
		"social_profile_url": attendee.SocialProfileURL,
		"address_line_1":     attendee.AddressLine1,
		"address_line_2":     attendee.AddressLine2,
		"city":               attendee.City,
		"district":           attendee.District,
	})
}

func (s *service) UpdateProfile(ctx *ginext.Context) {
	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBind(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid request format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	fields := &model.Attendee{
		Name:             req.Name,
		Profession:       req.Profession,
		SocialProfileURL: req.SocialProfileURL,
		AddressLine1:     req.AddressLine1,
		AddressLine2:     req.AddressLine2,
		City:             req.City,
		District:         req.District,
	}

	if err := s.repo.UpdateProfileByHashCode(ctx.Request.Context(), ctx.Param("code"), fields); err != nil {
		if errors.Is(err, repo.ErrAttendeeNotFound) {
			dto.AttendeeNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to update profile")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Msg("attendee profile updated")
	dto.InfoResponse(ctx, "PROFILE_UPDATED", "Update successfully!")
}
