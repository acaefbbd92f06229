package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"eventregis/internal/dto"
	"eventregis/internal/mailer"
	"eventregis/internal/rabbit"
)

// Reader consumes admitted-participant messages and sends confirmation
// e-mail. E-mail failures requeue the message; malformed payloads do not.
type Reader struct {
	RMQ    *rabbit.Client
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, mail *mailer.Mailer) *Reader {
	return &Reader{
		RMQ:  rmq,
		mail: mail,
		done: make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("notification reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg dto.ParticipantAdmittedMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("failed to unmarshal message: %s", string(body))
				return nil
			}

			zlog.Logger.Info().
				Int64("participant_id", msg.ParticipantID).
				Int64("event_id", msg.EventID).
				Msg("received admitted message")

			if msg.Email == "" {
				return nil
			}

			if err := r.mail.SendAdmittedEmail(msg.EventName, msg.FullName, msg.Email); err != nil {
				zlog.Logger.Warn().
					Err(err).
					Int64("participant_id", msg.ParticipantID).
					Msg("failed to send confirmation e-mail")
				return err
			}
			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("notification reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
