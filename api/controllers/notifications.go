package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	"github.com/angelmondragon/vendorledger/internal/notifications"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

var errNotificationsUnavailable error = pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable")

// inboxHandler resolves the calling vendor before running fn.
func inboxHandler(svc notifications.Service, logg *logger.Logger, fn func(w http.ResponseWriter, r *http.Request, vendorID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := errNotificationsUnavailable
		if svc != nil {
			var vendorID uuid.UUID
			if vendorID, err = vendorcontext.ResolveVendorID(r); err == nil {
				err = fn(w, r, vendorID)
			}
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}

func parseInboxFilter(r *http.Request) (notifications.Filter, error) {
	var filter notifications.Filter
	unread, err := validators.ParseQueryBool(r, "unreadOnly")
	if err != nil {
		return filter, err
	}
	if unread != nil {
		filter.UnreadOnly = *unread
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		kind, err := enums.ParseNotificationType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type")
		}
		filter.Type = kind
	}
	return filter, nil
}

// ListNotifications pages through the calling vendor's inbox, newest first.
// Supports ?unreadOnly=true and ?type=settlement|withdrawal|account.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, vendorID uuid.UUID) error {
		page, err := validators.ParsePagination(r)
		if err != nil {
			return err
		}
		filter, err := parseInboxFilter(r)
		if err != nil {
			return err
		}
		result, err := svc.List(r.Context(), vendorID, filter, page)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, dto.MapPage(result, dto.NotificationFrom))
		return nil
	})
}

func UnreadNotificationCount(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, vendorID uuid.UUID) error {
		n, err := svc.UnreadCount(r.Context(), vendorID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]int64{"unread": n})
		return nil
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, vendorID uuid.UUID) error {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return err
		}
		if err := svc.MarkRead(r.Context(), vendorID, id); err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
		return nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, vendorID uuid.UUID) error {
		updated, err := svc.MarkAllRead(r.Context(), vendorID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
		return nil
	})
}
