package pubsub

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

func TestSubscriptionIDsSkipsBlank(t *testing.T) {
	ids := subscriptionIDs(config.PubSubConfig{
		BookingsSubscription:     "bookings-sub",
		NotificationSubscription: "  ",
		AnalyticsSubscription:    " analytics-sub ",
	})
	if fmt.Sprint(ids) != "[bookings-sub analytics-sub]" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, id, want string
	}{
		{"proj", "subscriptions", "bookings-sub", "projects/proj/subscriptions/bookings-sub"},
		{"proj", "subscriptions", "projects/other/subscriptions/x", "projects/other/subscriptions/x"},
		{"proj", "topics", "ledger", "projects/proj/topics/ledger"},
		{"proj", "topics", "projects/other/subscriptions/x", "projects/proj/topics/projects/other/subscriptions/x"},
		{"proj", "topics", "", ""},
		{"", "topics", "ledger", ""},
	}
	for _, tc := range cases {
		if got := resourceName(tc.project, tc.kind, tc.id); got != tc.want {
			t.Fatalf("resourceName(%q, %q, %q) = %q, want %q", tc.project, tc.kind, tc.id, got, tc.want)
		}
	}
}

func TestCheckedMapsNotFound(t *testing.T) {
	if err := checked("projects/p/topics/t", nil); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	err := checked("projects/p/topics/t", status.Error(codes.NotFound, "gone"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := status.Error(codes.PermissionDenied, "nope")
	if err := checked("projects/p/topics/t", other); errors.Is(err, ErrNotFound) || status.Code(errors.Unwrap(err)) != codes.PermissionDenied {
		t.Fatalf("unexpected %v", err)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("ledger") != nil || c.Subscription("sub") != nil {
		t.Fatalf("expected nil handles from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
