package analytics

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

const maxLedgerWindow = 366 * 24 * time.Hour

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

var presets = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// ledgerQuery turns the request query into a LedgerQueryRequest. An explicit
// from/to pair wins over preset; with neither, the last 30 days are used.
func ledgerQuery(values url.Values, now time.Time) (types.LedgerQueryRequest, error) {
	var req types.LedgerQueryRequest

	if raw := strings.TrimSpace(values.Get("vendorId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendorId")
		}
		req.VendorID = id.String()
	}

	from, to := strings.TrimSpace(values.Get("from")), strings.TrimSpace(values.Get("to"))
	switch {
	case from == "" && to == "":
		preset := strings.ToLower(strings.TrimSpace(values.Get("preset")))
		if preset == "" {
			preset = "30d"
		}
		window, ok := presets[preset]
		if !ok {
			return req, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid preset %q", preset)
		}
		req.Start, req.End = now.Add(-window), now
		return req, nil
	case from == "" || to == "":
		return req, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
	}

	var err error
	if req.Start, err = parseBound("from", from); err != nil {
		return req, err
	}
	if req.End, err = parseBound("to", to); err != nil {
		return req, err
	}
	if req.End.Before(req.Start) {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	if req.End.Sub(req.Start) > maxLedgerWindow {
		return req, pkgerrors.New(pkgerrors.CodeValidation, "range exceeds 366 days")
	}
	return req, nil
}

// parseBound accepts RFC3339 or a bare date, which is read as midnight UTC.
func parseBound(name, value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	if day, err := time.Parse(time.DateOnly, value); err == nil {
		return day, nil
	}
	return time.Time{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid %s timestamp", name)
}
