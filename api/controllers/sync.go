package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/lms-engagements/api/responses"
	"github.com/angelmondragon/lms-engagements/api/validators"
	"github.com/angelmondragon/lms-engagements/pkg/logger"
)

// AwardSyncer rewrites issued achievements and certificates from their template.
type AwardSyncer interface {
	SyncTemplate(ctx context.Context, templateID int64) (int64, error)
	SyncAwarded(ctx context.Context, awardedID int64) error
}

// TemplateSync pushes the current template content to every award issued from it.
func TemplateSync(syncer AwardSyncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncer == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("award syncer"))
			return
		}
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		synced, err := syncer.SyncTemplate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"template_id": id, "synced": synced})
	}
}

// AwardSync refreshes a single issued award from its template.
func AwardSync(syncer AwardSyncer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncer == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("award syncer"))
			return
		}
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := syncer.SyncAwarded(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"awarded_id": id, "synced": true})
	}
}
