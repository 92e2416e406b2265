package adapters_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-roundup/adapters/gocommand"
	"github.com/goliatone/go-roundup/adapters/gojob"
	"github.com/goliatone/go-roundup/adapters/gologger"
	roundupcommand "github.com/goliatone/go-roundup/command"
	"github.com/goliatone/go-roundup/core"
	"github.com/goliatone/go-roundup/inbound"
	"github.com/goliatone/go-roundup/webhooks"
)

func TestRuntimeCompatibility_WebhookDispatchesThroughCommandBus(t *testing.T) {
	svc := &compatService{outcome: core.Outcome{Transferred: true, TransactionID: "tx_1", Amount: 30}}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterRoundUpCommands(adapter, svc)
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	dispatcher := inbound.NewDispatcher(nil)
	if err := dispatcher.Register(inbound.NewWebhookHandler(commandBus{}, webhooks.NewMemoryDeliveryLedger())); err != nil {
		t.Fatalf("register webhook handler: %v", err)
	}

	body := []byte(`{"type":"transaction.created","data":{"id":"tx_1","amount":-1270,"account_id":"acc_1"}}`)
	for attempt, want := range []int{http.StatusOK, http.StatusNoContent} {
		result, err := dispatcher.Dispatch(context.Background(), core.InboundRequest{
			Surface: inbound.SurfaceWebhook,
			Body:    body,
		})
		if err != nil {
			t.Fatalf("dispatch attempt %d: %v", attempt, err)
		}
		if result.StatusCode != want {
			t.Fatalf("attempt %d: expected %d, got %d", attempt, want, result.StatusCode)
		}
	}
	if svc.handled != 1 {
		t.Fatalf("expected one engine run through the command bus, got %d", svc.handled)
	}
}

func TestRuntimeCompatibility_JobRunnerLogsThroughResolvedLogger(t *testing.T) {
	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	loggers := gologger.ResolveComponents(provider, nil)
	if loggers.Worker != logger {
		t.Fatalf("expected worker logger from provider")
	}

	enqueuer := &compatQueue{}
	if err := gojob.NewScheduler(enqueuer).ScheduleRefresh(context.Background(), "user_1"); err != nil {
		t.Fatalf("schedule refresh: %v", err)
	}

	svc := &compatService{}
	runner := gojob.NewRunner(svc, gojob.RetryPolicy{MaxAttempts: 3}, gologger.WorkerHook(provider, nil))
	if err := runner.RunOnce(context.Background(), enqueuer, 1); err != nil {
		t.Fatalf("run refresh job: %v", err)
	}
	if svc.refreshed != "user_1" {
		t.Fatalf("expected refresh for user_1, got %q", svc.refreshed)
	}
	if !enqueuer.delivery.acked {
		t.Fatalf("expected delivery ack")
	}
	if logger.infos == 0 {
		t.Fatalf("expected job success to be logged through the resolved logger")
	}
}

// commandBus satisfies the inbound transaction service by dispatching the
// round-up command instead of calling the service directly.
type commandBus struct{}

func (commandBus) HandleTransaction(ctx context.Context, body []byte) (core.Outcome, error) {
	return gocommand.DispatchWithResult[roundupcommand.HandleTransactionMessage, core.Outcome](
		ctx,
		roundupcommand.HandleTransactionMessage{Body: body},
	)
}

type compatService struct {
	outcome   core.Outcome
	handled   int
	refreshed string
}

func (s *compatService) HandleTransaction(context.Context, []byte) (core.Outcome, error) {
	s.handled++
	return s.outcome, nil
}

func (s *compatService) ExchangeAuthCode(context.Context, string, string) (core.UserConfig, error) {
	return core.UserConfig{}, nil
}

func (s *compatService) RefreshAuthToken(_ context.Context, userID string) (core.UserConfig, error) {
	s.refreshed = userID
	return core.UserConfig{UserID: userID}, nil
}

func (s *compatService) EnsureWebhook(context.Context, string) (string, bool, error) {
	return "webhook_1", false, nil
}

func (s *compatService) ConfirmSetup(context.Context, core.SetupRequest) (core.SetupResult, error) {
	return core.SetupResult{}, nil
}

type compatQueue struct {
	delivery *compatDelivery
}

func (q *compatQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	q.delivery = &compatDelivery{msg: msg}
	return queue.EnqueueReceipt{DispatchID: msg.IdempotencyKey}, nil
}

func (q *compatQueue) Dequeue(context.Context) (queue.Delivery, error) {
	return q.delivery, nil
}

type compatDelivery struct {
	msg   *job.ExecutionMessage
	acked bool
}

func (d *compatDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *compatDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *compatDelivery) Nack(context.Context, queue.NackOptions) error {
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct {
	infos int
}

func (*compatLogger) Trace(string, ...any)  {}
func (*compatLogger) Debug(string, ...any)  {}
func (l *compatLogger) Info(string, ...any) { l.infos++ }
func (*compatLogger) Warn(string, ...any)   {}
func (*compatLogger) Error(string, ...any)  {}
func (*compatLogger) Fatal(string, ...any)  {}

func (l *compatLogger) WithContext(context.Context) glog.Logger {
	return l
}
