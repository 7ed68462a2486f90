// Package pubsub opens the Pub/Sub v2 client shared by the ledger processes
// and resolves the configured topic and subscription IDs to resource names.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

var (
	ErrNotConnected = errors.New("pubsub: client not connected")
	ErrNotFound     = errors.New("pubsub: resource does not exist")
)

type Client struct {
	sdk     *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and checks that the ledger topic and every
// configured subscription exist before returning.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	sdk, err := pubsub.NewClient(ctx, project, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("open pubsub client: %w", err)
	}
	c := &Client{sdk: sdk, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":       project,
			"subscriptions": subscriptionIDs(cfg),
		}), "pubsub.connected")
	}
	return c, nil
}

// subscriptionIDs lists the non-blank configured subscriptions.
func subscriptionIDs(cfg config.PubSubConfig) []string {
	var ids []string
	for _, id := range []string{cfg.BookingsSubscription, cfg.NotificationSubscription, cfg.AnalyticsSubscription} {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Ping reports every missing resource at once rather than the first.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.sdk == nil {
		return ErrNotConnected
	}
	ids := subscriptionIDs(c.cfg)
	if len(ids) == 0 {
		return errors.New("pubsub subscription name is required")
	}
	var errs error
	if topic := c.topic(c.cfg.LedgerTopic); topic != "" {
		_, err := c.sdk.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		errs = multierr.Append(errs, checked(topic, err))
	}
	for _, id := range ids {
		name := c.subscription(id)
		_, err := c.sdk.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		errs = multierr.Append(errs, checked(name, err))
	}
	return errs
}

func checked(resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resource)
	default:
		return fmt.Errorf("get %s: %w", resource, err)
	}
}

// Subscription accepts a bare ID or a full resource name.
func (c *Client) Subscription(id string) *pubsub.Subscriber {
	if c == nil || c.sdk == nil {
		return nil
	}
	name := c.subscription(id)
	if name == "" {
		return nil
	}
	return c.sdk.Subscriber(name)
}

func (c *Client) BookingsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.BookingsSubscription)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher accepts a bare topic ID or a full resource name.
func (c *Client) Publisher(id string) *pubsub.Publisher {
	if c == nil || c.sdk == nil {
		return nil
	}
	name := c.topic(id)
	if name == "" {
		return nil
	}
	return c.sdk.Publisher(name)
}

func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

func (c *Client) subscription(id string) string { return resourceName(c.project, "subscriptions", id) }

func (c *Client) topic(id string) string { return resourceName(c.project, "topics", id) }

// resourceName expands id to projects/<project>/<kind>/<id>. Names that are
// already qualified pass through untouched.
func resourceName(project, kind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + id
}
