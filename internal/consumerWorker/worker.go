package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"ticketbooth/internal/dto"
	"ticketbooth/internal/mailer"
	"ticketbooth/internal/rabbit"
)

// Reader drains the notification queue and delivers profile-update-link
// emails. Delivery is at-least-once and fully decoupled from the HTTP
// request that queued the message.
type Reader struct {
	RMQ    *rabbit.Client
	mail   mailer.Config
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, mail mailer.Config) *Reader {
	return &Reader{
		RMQ:  rmq,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("Notification reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg dto.ProfileUpdateMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("Failed to unmarshal notification message: %s", string(body))
				return err
			}

			zlog.Logger.Info().
				Int64("attendee_id", msg.AttendeeID).
				Str("email", msg.Email).
				Msg("Received profile update link request")

			if err := mailer.SendProfileUpdateLink(
				&zlog.Logger,
				r.mail,
				msg.Name,
				msg.Email,
				msg.UpdateURL,
			); err != nil {
				zlog.Logger.Warn().
					Err(err).
					Str("email", msg.Email).
					Msg("Failed to send profile update link, message will be retried")
				return err
			}

			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("Notification reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
