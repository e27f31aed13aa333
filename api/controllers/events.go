package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/lms-engagements/api/responses"
	"github.com/angelmondragon/lms-engagements/api/validators"
	"github.com/angelmondragon/lms-engagements/internal/engagements"
	"github.com/angelmondragon/lms-engagements/pkg/enums"
	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

// EventDispatcher runs an event through the trigger table.
type EventDispatcher interface {
	OnEvent(ctx context.Context, event engagements.Event) (*engagements.DispatchResult, error)
}

// EventPublisher hands an event to the asynchronous consumer.
type EventPublisher interface {
	Publish(ctx context.Context, event engagements.Event) (string, error)
}

type eventRequest struct {
	EventID       string `json:"event_id" validate:"omitempty,max=128"`
	Event         string `json:"event" validate:"required"`
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	RelatedPostID *int64 `json:"related_post_id" validate:"omitempty,gt=0"`
}

func (req eventRequest) toEvent() (engagements.Event, error) {
	name, err := enums.ParseEventName(req.Event)
	if err != nil {
		return engagements.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event").
			WithDetails(map[string]string{"event": "is invalid"})
	}
	return engagements.Event{ID: strings.TrimSpace(req.EventID), Name: name, UserID: req.UserID, RelatedPostID: req.RelatedPostID}, nil
}

// EventDispatch feeds an event to the dispatcher and returns what happened to
// every matched definition. With ?async=true the event is published for the
// worker instead and 202 is returned. Per-definition failures are reported on
// the items; the request only fails when nothing could be dispatched.
func EventDispatch(dispatcher EventDispatcher, publisher EventPublisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		async, err := validators.ParseQueryBool(r, "async")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req eventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := req.toEvent()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if async {
			if publisher == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "event publishing is not configured"))
				return
			}
			eventID, err := publisher.Publish(r.Context(), event)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"event_id": eventID, "event": event})
			return
		}

		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("dispatcher"))
			return
		}
		result, err := dispatcher.OnEvent(r.Context(), event)
		if err != nil {
			if result == nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(logg.WithFields(r.Context(), pkgerrors.Dump(err).Fields()), "event.partially_dispatched", err)
			}
		}
		responses.WriteSuccess(w, result)
	}
}
