// Package notification dispatches best-effort notifications to complaint
// authors. Dispatch never blocks and never fails the triggering operation:
// events ride a buffered queue into a worker goroutine whose only error
// channel is the log.
package notification

import (
	"civicvoice/backend/internal/localization"
	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/storage"

	"github.com/rs/zerolog"
)

// Event describes one notification-worthy action.
type Event struct {
	Type        string // models.Notification* constant
	RecipientID string
	ActorID     string
	ActorName   string
	ComplaintID string
	CommentID   string
	Status      string // for status-change events
}

// TelegramSender mirrors a notification to a linked Telegram chat.
type TelegramSender interface {
	SendMessage(chatID int64, text string) error
}

// Dispatcher is the fire-and-forget notification worker.
type Dispatcher struct {
	store    storage.Storage
	loc      *localization.Localizer
	telegram TelegramSender // nil when the Telegram mirror is disabled
	lang     string

	queue chan Event
	done  chan struct{}
	log   zerolog.Logger
}

// NewDispatcher constructs a dispatcher. telegram may be nil.
func NewDispatcher(store storage.Storage, loc *localization.Localizer, telegram TelegramSender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		loc:      loc,
		telegram: telegram,
		lang:     "en",
		queue:    make(chan Event, 256),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Dispatch enqueues an event. Self-votes and self-comments are skipped;
// status changes are delivered even when the author changed their own
// complaint, since resolving is owner-only and must still produce its
// notification. A full queue drops the event with a warning; neither
// case reaches the caller.
func (d *Dispatcher) Dispatch(event Event) {
	if event.RecipientID == "" {
		return
	}
	if event.RecipientID == event.ActorID && event.Type != models.NotificationStatusChange {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.log.Warn().Str("type", event.Type).Str("recipient", event.RecipientID).
			Msg("notification queue full, dropping event")
	}
}

// Run consumes the queue until Stop is called. Meant to run as a goroutine
// next to the HTTP server.
func (d *Dispatcher) Run() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			return
		}
	}
}

// Stop terminates the worker loop.
func (d *Dispatcher) Stop() {
	close(d.done)
}

func (d *Dispatcher) deliver(event Event) {
	notification := d.build(event)

	if err := d.store.SaveNotification(notification); err != nil {
		d.log.Error().Err(err).Str("type", event.Type).
			Str("recipient", event.RecipientID).
			Msg("failed to persist notification")
		return
	}

	if err := d.store.PublishNotification(notification); err != nil {
		d.log.Warn().Err(err).Str("notification_id", notification.ID).
			Msg("failed to publish notification for live delivery")
	}

	d.mirrorToTelegram(notification)
}

// build assembles the localized notification record for an event.
func (d *Dispatcher) build(event Event) *models.Notification {
	var title, message string
	switch event.Type {
	case models.NotificationUpvote:
		title = d.loc.GetString(d.lang, "notification.upvote.title")
		message = d.loc.Format(d.lang, "notification.upvote.message", event.ActorName)
	case models.NotificationDownvote:
		title = d.loc.GetString(d.lang, "notification.downvote.title")
		message = d.loc.Format(d.lang, "notification.downvote.message", event.ActorName)
	case models.NotificationComment:
		title = d.loc.GetString(d.lang, "notification.comment.title")
		message = d.loc.Format(d.lang, "notification.comment.message", event.ActorName)
	case models.NotificationStatusChange:
		title = d.loc.GetString(d.lang, "notification.status.title")
		message = d.loc.Format(d.lang, "notification.status.message", event.Status)
	case models.NotificationAssignment:
		title = d.loc.GetString(d.lang, "notification.assignment.title")
		message = d.loc.Format(d.lang, "notification.assignment.message", event.ActorName)
	default:
		title = event.Type
		message = event.ActorName
	}

	return &models.Notification{
		RecipientID: event.RecipientID,
		Type:        event.Type,
		Title:       title,
		Message:     message,
		Data: models.NotificationData{
			ComplaintID: event.ComplaintID,
			CommentID:   event.CommentID,
			ActorID:     event.ActorID,
			ActorName:   event.ActorName,
			Status:      event.Status,
		},
	}
}

func (d *Dispatcher) mirrorToTelegram(notification *models.Notification) {
	if d.telegram == nil {
		return
	}
	recipient, err := d.store.GetUserByID(notification.RecipientID)
	if err != nil || recipient.TelegramChatID == 0 {
		return
	}
	text := notification.Title + "\n" + notification.Message
	if err := d.telegram.SendMessage(recipient.TelegramChatID, text); err != nil {
		d.log.Warn().Err(err).Str("recipient", notification.RecipientID).
			Msg("failed to mirror notification to telegram")
	}
}
