// Package order creates orders on the third-party admin console through the
// protected automation layer. The site-specific navigation lives behind the
// Navigator interface; this package owns the protection and artifact plumbing
// around it.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"orderpilot/internal/infra/browserpool"
	"orderpilot/internal/observability/metrics"
	"orderpilot/internal/resilience/circuitbreaker"
	"orderpilot/internal/usecase/automation"
)

// Circuit names registered at the composition root.
const (
	CircuitBrowserWorkflow = "browser-workflow"
	CircuitArtifactUpload  = "artifact-upload"
)

// ErrServiceUnavailable classifies failures where the automation layer is
// shedding load (open circuit or exhausted execution budget). Outer layers
// map it to a 503 and retry later.
var ErrServiceUnavailable = errors.New("order service unavailable")

// ErrInvalidRequest is returned before any automation runs.
var ErrInvalidRequest = errors.New("invalid order request")

// Request describes one order to place.
type Request struct {
	Reference string `json:"reference"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

// Validate rejects requests that could never succeed downstream.
func (r Request) Validate() error {
	if r.Reference == "" {
		return fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}
	if r.SKU == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidRequest)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}
	return nil
}

// Result is the outcome of a completed order workflow.
type Result struct {
	OrderID     string    `json:"order_id"`
	Reference   string    `json:"reference"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Confirmation is what the Navigator extracts from the console after a
// successful submission. Artifact is an optional confirmation capture.
type Confirmation struct {
	OrderID  string
	Artifact []byte
}

// Navigator drives the admin console for one order on the given page. It is
// the site-specific part and is injected.
type Navigator interface {
	PlaceOrder(ctx context.Context, page playwright.Page, req Request) (Confirmation, error)
}

// ArtifactStore persists confirmation captures and returns a retrieval URL.
type ArtifactStore interface {
	Store(ctx context.Context, key string, data []byte) (string, error)
}

// PageOpener is the page-creation slice of the engine handle. The Playwright
// adapter satisfies it.
type PageOpener interface {
	NewPage() (playwright.Page, error)
}

// Service places orders behind the browser-workflow circuit and uploads
// confirmation artifacts behind the artifact-upload circuit.
type Service struct {
	exec      *automation.Executor
	navigator Navigator
	artifacts ArtifactStore
	logger    *slog.Logger

	now func() time.Time
}

// NewService wires the order workflow. artifacts may be nil, in which case
// confirmation captures are discarded.
func NewService(exec *automation.Executor, navigator Navigator, artifacts ArtifactStore, logger *slog.Logger) *Service {
	return &Service{
		exec:      exec,
		navigator: navigator,
		artifacts: artifacts,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder places one order. The navigation runs on a fresh page from a
// leased engine instance under browser-workflow protection. A failed
// artifact upload degrades to a warning; the order still succeeds.
func (s *Service) CreateOrder(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	start := s.now()
	logger := s.logger.With(slog.String("reference", req.Reference))

	value, err := s.exec.RunProtected(ctx, CircuitBrowserWorkflow,
		func(ctx context.Context, inst *browserpool.Instance) (interface{}, error) {
			opener, ok := inst.Engine().(PageOpener)
			if !ok {
				return nil, fmt.Errorf("engine %T cannot open pages", inst.Engine())
			}
			page, err := opener.NewPage()
			if err != nil {
				return nil, fmt.Errorf("open page: %w", err)
			}
			defer func() {
				if err := page.Close(); err != nil {
					logger.Warn("closing page failed", slog.Any("error", err))
				}
			}()
			return s.navigator.PlaceOrder(ctx, page, req)
		})
	if err != nil {
		logger.Error("order workflow failed", slog.Any("error", err))
		switch {
		case errors.Is(err, circuitbreaker.ErrOpen):
			metrics.RecordOrderCreated("rejected")
			return Result{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		case errors.Is(err, circuitbreaker.ErrTimeout):
			metrics.RecordOrderCreated("timeout")
			return Result{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		default:
			metrics.RecordOrderCreated("failure")
			return Result{}, err
		}
	}

	conf, ok := value.(Confirmation)
	if !ok {
		return Result{}, fmt.Errorf("navigator returned %T, want Confirmation", value)
	}

	result := Result{
		OrderID:     conf.OrderID,
		Reference:   req.Reference,
		CompletedAt: s.now(),
	}

	if s.artifacts != nil && len(conf.Artifact) > 0 {
		if url, err := s.uploadArtifact(ctx, conf); err != nil {
			logger.Warn("confirmation artifact upload failed",
				slog.String("order_id", conf.OrderID),
				slog.Any("error", err))
		} else {
			result.ArtifactURL = url
		}
	}

	metrics.RecordOrderCreated("success")
	metrics.RecordOrderWorkflowDuration(s.now().Sub(start))
	logger.Info("order created",
		slog.String("order_id", result.OrderID),
		slog.Duration("duration", s.now().Sub(start)))
	return result, nil
}

// uploadArtifact stores the confirmation capture under artifact-upload
// protection so a degraded store trips its own circuit, not the workflow's.
func (s *Service) uploadArtifact(ctx context.Context, conf Confirmation) (string, error) {
	key := fmt.Sprintf("confirmations/%s-%s.png", conf.OrderID, uuid.NewString())

	value, err := s.exec.RunGuarded(ctx, CircuitArtifactUpload,
		func(ctx context.Context) (interface{}, error) {
			return s.artifacts.Store(ctx, key, conf.Artifact)
		})
	if err != nil {
		return "", err
	}
	url, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("artifact store returned %T, want string", value)
	}
	return url, nil
}
