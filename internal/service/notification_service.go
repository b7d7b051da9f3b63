package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNothingDelivered is returned when every requested channel failed.
var ErrNothingDelivered = errors.New("notification not delivered on any channel")

// NotificationServiceImpl implements ports.Notifier over the database and
// mail channels.
type NotificationServiceImpl struct {
	repo     ports.NotificationRepository
	contacts ports.ContactRepository
	mailer   ports.Mailer
	log      zerolog.Logger
	now      func() time.Time
}

// NewNotificationService creates a new NotificationServiceImpl. mailer may be
// nil when no mail provider is configured; the mail channel is then skipped.
func NewNotificationService(
	repo ports.NotificationRepository,
	contacts ports.ContactRepository,
	mailer ports.Mailer,
	log zerolog.Logger,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		repo:     repo,
		contacts: contacts,
		mailer:   mailer,
		log:      log,
		now:      time.Now,
	}
}

// Dispatch delivers the notification on each requested channel. A failing
// channel or recipient is logged and the rest continue; an error is returned
// only if nothing was delivered at all.
func (s *NotificationServiceImpl) Dispatch(ctx context.Context, req domain.NotificationRequest) (*domain.Notification, error) {
	if req.Title == "" {
		return nil, apperror.Validation("notification title is required")
	}
	if len(req.ActorIDs) == 0 {
		return nil, apperror.Validation("notification needs at least one recipient")
	}
	channels := req.Channels
	if len(channels) == 0 {
		channels = []domain.NotificationChannel{domain.ChannelDatabase}
	}

	n := &domain.Notification{
		ID:        uuid.New(),
		Title:     req.Title,
		Body:      req.Body,
		Type:      req.Type,
		ActorIDs:  req.ActorIDs,
		Channels:  channels,
		CreatedAt: s.now().UTC(),
	}
	log := s.log.With().Str("notification_id", n.ID.String()).Str("type", n.Type).Logger()

	var errs []error
	for _, ch := range channels {
		var delivered int
		var err error
		switch ch {
		case domain.ChannelDatabase:
			delivered, err = s.store(ctx, n, req.Data)
		case domain.ChannelMail:
			delivered, err = s.mail(ctx, n)
		default:
			err = fmt.Errorf("unsupported channel %q", ch)
		}
		n.Delivered += delivered
		if err != nil {
			log.Warn().Err(err).Str("channel", string(ch)).Msg("Notification channel failed")
			errs = append(errs, err)
		}
	}

	if n.Delivered == 0 {
		return n, fmt.Errorf("%w: %w", ErrNothingDelivered, errors.Join(errs...))
	}
	return n, nil
}

func (s *NotificationServiceImpl) store(ctx context.Context, n *domain.Notification, data map[string]string) (int, error) {
	var payload []byte
	if len(data) > 0 {
		var err error
		if payload, err = json.Marshal(data); err != nil {
			return 0, fmt.Errorf("encode notification data: %w", err)
		}
	}

	var delivered int
	var errs []error
	for _, actorID := range n.ActorIDs {
		if err := s.repo.Create(ctx, n, actorID, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

func (s *NotificationServiceImpl) mail(ctx context.Context, n *domain.Notification) (int, error) {
	if s.mailer == nil {
		return 0, errors.New("mail channel not configured")
	}
	contacts, err := s.contacts.GetContacts(ctx, n.ActorIDs)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		return 0, errors.New("no recipient has a mail address")
	}

	var delivered int
	var errs []error
	for _, c := range contacts {
		if err := s.mailer.Send(ctx, c, n.Title, n.Body); err != nil {
			errs = append(errs, fmt.Errorf("mail %s: %w", c.ActorID, err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}
