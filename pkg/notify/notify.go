// Package notify invokes outbound integrations after a change outcome
// is known. Integrations are strictly observational: their success or
// failure never affects, blocks, or retries the primary result.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Event describes one finished apply, batch, or revert outcome
type Event struct {
	Action        string                 `json:"action"` // apply, batch, revert
	Timestamp     time.Time              `json:"timestamp"`
	Simulate      bool                   `json:"simulate"`
	Actor         string                 `json:"actor,omitempty"`
	RequestID     string                 `json:"request_id,omitempty"`
	BatchPosition *int                   `json:"batch_position,omitempty"`
	Request       interface{}            `json:"request,omitempty"`
	Result        interface{}            `json:"result"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// Outcome is what one integration reported back
type Outcome struct {
	Integration   string                 `json:"integration"`
	Enabled       bool                   `json:"enabled"`
	Success       bool                   `json:"success"`
	SkippedReason string                 `json:"skipped_reason,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// Integration is one outbound collaborator (ticketing, publishing, ...)
type Integration interface {
	Name() string
	Enabled() bool
	Notify(ctx context.Context, ev Event) (Outcome, error)
}

// Dispatcher fans an event out to every registered integration and
// aggregates their outcomes alongside the primary result
type Dispatcher struct {
	integrations []Integration
	timeout      time.Duration
}

// NewDispatcher creates a dispatcher over the given integrations
func NewDispatcher(integrations ...Integration) *Dispatcher {
	return &Dispatcher{
		integrations: integrations,
		timeout:      10 * time.Second,
	}
}

// Dispatch invokes every integration in order. Panics and errors become
// failed outcomes; nothing propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) []Outcome {
	if len(d.integrations) == 0 {
		return nil
	}

	outcomes := make([]Outcome, 0, len(d.integrations))
	for _, integration := range d.integrations {
		if !integration.Enabled() {
			outcomes = append(outcomes, Outcome{
				Integration:   integration.Name(),
				Enabled:       false,
				SkippedReason: "integration disabled",
			})
			continue
		}
		outcomes = append(outcomes, d.dispatchOne(ctx, integration, ev))
	}
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, integration Integration, ev Event) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Integration '%s' panicked: %v", integration.Name(), r)
			outcome = Outcome{
				Integration: integration.Name(),
				Enabled:     true,
				Error:       fmt.Sprintf("integration panicked: %v", r),
			}
		}
	}()

	notifyCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := integration.Notify(notifyCtx, ev)
	out.Integration = integration.Name()
	out.Enabled = true
	if err != nil {
		log.Printf("WARN: Integration '%s' failed: %v", integration.Name(), err)
		out.Success = false
		out.Error = err.Error()
	}
	return out
}

// LogIntegration writes outcomes to the process log. It ships as the
// default integration so operators see one line per outcome even with
// no external collaborators configured.
type LogIntegration struct{}

// Name identifies the integration in outcome records
func (LogIntegration) Name() string { return "log" }

// Enabled is always true for the log integration
func (LogIntegration) Enabled() bool { return true }

// Notify logs the event
func (LogIntegration) Notify(ctx context.Context, ev Event) (Outcome, error) {
	log.Printf("INFO: Notification action=%s simulate=%t actor=%s", ev.Action, ev.Simulate, ev.Actor)
	return Outcome{Success: true}, nil
}
