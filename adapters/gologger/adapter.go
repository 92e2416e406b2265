package gologger

import (
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-roundup/adapters/gojob"
)

const (
	ServiceLoggerName = "roundup"
	WorkerLoggerName  = "roundup.worker"
	InboundLoggerName = "roundup.inbound"
)

// Loggers holds one named logger per round-up component.
type Loggers struct {
	Service glog.Logger
	Worker  glog.Logger
	Inbound glog.Logger
}

// Resolve uses precedence provider > logger > nop. An empty name resolves
// the service logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if strings.TrimSpace(name) == "" {
		name = ServiceLoggerName
	}
	resolvedProvider, resolved := glog.Resolve(name, provider, logger)
	return resolvedProvider, glog.Ensure(resolved)
}

// ResolveComponents resolves the service, worker and inbound loggers. A
// provider that has no logger for a component name falls back to logger.
func ResolveComponents(provider glog.LoggerProvider, logger glog.Logger) Loggers {
	resolvedProvider, service := Resolve(ServiceLoggerName, provider, logger)
	return Loggers{
		Service: service,
		Worker:  glog.Ensure(resolvedProvider.GetLogger(WorkerLoggerName)),
		Inbound: glog.Ensure(resolvedProvider.GetLogger(InboundLoggerName)),
	}
}

// WorkerHook returns a job runner hook that reports through the worker logger.
func WorkerHook(provider glog.LoggerProvider, logger glog.Logger) *gojob.LoggingHook {
	return gojob.NewLoggingHook(ResolveComponents(provider, logger).Worker)
}
