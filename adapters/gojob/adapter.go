package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-roundup/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDRefreshToken  = "roundup.token.refresh"
	JobIDEnsureWebhook = "roundup.webhook.ensure"

	ParamUserID = "user_id"
)

// JobService is the subset of the round-up service that background jobs call.
type JobService interface {
	RefreshAuthToken(ctx context.Context, userID string) (core.UserConfig, error)
	EnsureWebhook(ctx context.Context, userID string) (string, bool, error)
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     8,
		BaseDelay:       time.Second,
		MaxDelay:        5 * time.Minute,
		DeadLetterOnMax: true,
	}
}

// NackFor builds the nack options for a failed attempt. Terminal errors fail
// the delivery immediately; anything else is retried with a doubling delay
// until MaxAttempts.
func (p RetryPolicy) NackFor(attempt int, cause error) queue.NackOptions {
	out := queue.NackOptions{Disposition: queue.NackDispositionRetry}
	if cause != nil {
		out.Reason = strings.TrimSpace(cause.Error())
	}
	if IsTerminal(cause) {
		out.Disposition = queue.NackDispositionFailed
		return out
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
		return out
	}
	if p.BaseDelay > 0 {
		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				break
			}
		}
		out.Delay = delay
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	return out
}

// ErrInvalidJob marks a message the runner can never execute.
var ErrInvalidJob = errors.New("gojob: invalid job")

var terminalTextCodes = []string{
	core.ServiceErrorAuthRefreshFailed,
	core.ServiceErrorAuthExchangeFailed,
	core.ServiceErrorUnknownUser,
	core.ServiceErrorMissingLink,
	core.ServiceErrorBadInput,
	core.ServiceErrorUnauthorized,
	core.ServiceErrorForbidden,
	core.ServiceErrorNotFound,
}

// IsTerminal reports whether a job error needs user action (re-authorization,
// setup) or a corrected message rather than another attempt.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidJob) {
		return true
	}
	for _, code := range terminalTextCodes {
		if core.IsTextCode(err, code) {
			return true
		}
	}
	return false
}

// NewRefreshTokenMessage builds the queue message refreshing one user's tokens.
func NewRefreshTokenMessage(userID string) *job.ExecutionMessage {
	return newUserMessage(JobIDRefreshToken, userID)
}

// NewEnsureWebhookMessage builds the queue message re-registering one user's webhook.
func NewEnsureWebhookMessage(userID string) *job.ExecutionMessage {
	return newUserMessage(JobIDEnsureWebhook, userID)
}

func newUserMessage(jobID string, userID string) *job.ExecutionMessage {
	userID = strings.TrimSpace(userID)
	return &job.ExecutionMessage{
		JobID:          jobID,
		ScriptPath:     jobID,
		Parameters:     map[string]any{ParamUserID: userID},
		IdempotencyKey: jobID + ":" + userID,
	}
}

// UserIDFromMessage reads the user id parameter of a job message.
func UserIDFromMessage(msg *job.ExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: execution message is required", ErrInvalidJob)
	}
	value, _ := msg.Parameters[ParamUserID].(string)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: job %q is missing %s", ErrInvalidJob, msg.JobID, ParamUserID)
	}
	return value, nil
}

type Scheduler struct {
	enqueuer queue.Enqueuer
}

func NewScheduler(enqueuer queue.Enqueuer) *Scheduler {
	return &Scheduler{enqueuer: enqueuer}
}

func (s *Scheduler) ScheduleRefresh(ctx context.Context, userID string) error {
	return s.enqueue(ctx, NewRefreshTokenMessage(userID))
}

func (s *Scheduler) ScheduleEnsureWebhook(ctx context.Context, userID string) error {
	return s.enqueue(ctx, NewEnsureWebhookMessage(userID))
}

func (s *Scheduler) enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if _, err := UserIDFromMessage(msg); err != nil {
		return err
	}
	_, err := s.enqueuer.Enqueue(ctx, msg)
	return err
}

// Runner executes round-up jobs pulled from a go-job queue.
type Runner struct {
	service JobService
	policy  RetryPolicy
	hook    worker.Hook
	now     func() time.Time
}

// NewRunner uses DefaultRetryPolicy when policy is the zero value.
func NewRunner(service JobService, policy RetryPolicy, hook worker.Hook) *Runner {
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy()
	}
	return &Runner{
		service: service,
		policy:  policy,
		hook:    hook,
		now:     time.Now,
	}
}

// RunOnce dequeues one delivery and executes it. attempt is the delivery's
// attempt number as tracked by the queue backend, starting at 1.
func (r *Runner) RunOnce(ctx context.Context, dequeuer queue.Dequeuer, attempt int) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return r.Execute(ctx, delivery, attempt)
}

func (r *Runner) Execute(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	if attempt < 1 {
		attempt = 1
	}
	msg := delivery.Message()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: r.now()}
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}

	runErr := r.run(ctx, msg)
	event.Duration = r.now().Sub(event.StartedAt)
	if runErr == nil {
		if r.hook != nil {
			r.hook.OnSuccess(ctx, event)
		}
		return delivery.Ack(ctx)
	}

	opts := r.policy.NackFor(attempt, runErr)
	event.Err = runErr
	event.Delay = opts.Delay
	if r.hook != nil && opts.Disposition == queue.NackDispositionRetry {
		r.hook.OnRetry(ctx, event)
	} else if r.hook != nil {
		r.hook.OnFailure(ctx, event)
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		return err
	}
	return runErr
}

func (r *Runner) run(ctx context.Context, msg *job.ExecutionMessage) error {
	userID, err := UserIDFromMessage(msg)
	if err != nil {
		return err
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDRefreshToken:
		_, err = r.service.RefreshAuthToken(ctx, userID)
	case JobIDEnsureWebhook:
		_, _, err = r.service.EnsureWebhook(ctx, userID)
	default:
		err = fmt.Errorf("%w: unsupported job %q", ErrInvalidJob, msg.JobID)
	}
	return err
}

// LoggingHook reports worker events through the service logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "job started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "job succeeded", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "job failed", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "job scheduled for retry", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	args := []any{"attempt", event.Attempt, "duration", event.Duration}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
	}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay)
	}
	if event.Err != nil {
		args = append(args, "error", event.Err)
	}
	logger := h.logger.WithContext(ctx)
	switch level {
	case "debug":
		logger.Debug(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

var (
	_ worker.Hook = (*LoggingHook)(nil)
	_ JobService  = (*core.Service)(nil)
)
