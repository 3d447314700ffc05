package service

import (
	"context"

	"nodeclass/internal/config"
	"nodeclass/internal/metrics"
	"nodeclass/internal/repository"
	"nodeclass/internal/resolver"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("nodeclass.service")

// DefaultConcurrency bounds parallel resolutions in ClassifyAll
const DefaultConcurrency = 8

// Deps are the collaborators shared by every service
type Deps struct {
	Repo     repository.Repository
	Features config.Features
	Events   *EventBus
	Log      logrus.FieldLogger
	// Concurrency bounds parallel resolutions; DefaultConcurrency when zero
	Concurrency int
}

// Services is the full set of application services
type Services struct {
	Classification *ClassificationService
	Groups         *GroupService
	Memberships    *MembershipService
	Nodes          *NodeService
	Classes        *ClassService
	Import         *ImportService
}

// New wires every service around one repository and event bus
func New(d Deps) *Services {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Events == nil {
		d.Events = NewEventBus()
	}
	if d.Concurrency <= 0 {
		d.Concurrency = DefaultConcurrency
	}

	b := base{
		repo:     d.Repo,
		gate:     NewGate(d.Features),
		eventBus: d.Events,
		log:      d.Log,
	}

	return &Services{
		Classification: NewClassificationService(b.named("classification"), resolver.New(d.Log), d.Concurrency),
		Groups:         &GroupService{base: b.named("groups")},
		Memberships:    &MembershipService{base: b.named("memberships")},
		Nodes:          &NodeService{base: b.named("nodes")},
		Classes:        &ClassService{base: b.named("classes")},
		Import:         &ImportService{base: b.named("import")},
	}
}

// base carries what every service needs
type base struct {
	repo     repository.Repository
	gate     Gate
	eventBus *EventBus
	log      logrus.FieldLogger
}

func (b base) named(component string) base {
	b.log = b.log.WithField("component", component)
	return b
}

// mutate runs a write under a span, records its outcome and publishes the
// event returned by fn when it succeeds
func (b base) mutate(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) (*Event, error)) error {
	ctx, span := tracer.Start(ctx, "service."+op, trace.WithAttributes(attrs...))
	defer span.End()

	event, err := fn(ctx)
	metrics.ObserveMutation(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.log.WithError(err).WithField("operation", op).Debug("mutation rejected")
		return err
	}

	span.SetStatus(codes.Ok, "")
	if event != nil {
		b.eventBus.Publish(*event)
	}
	return nil
}
