// Package steps wraps individual browser interactions with short local
// retries, so a selector that has not rendered yet does not bubble up as a
// workflow failure.
package steps

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"orderpilot/internal/resilience/retry"
)

// Element is the slice of the locator surface the step helpers need.
// playwright.Locator satisfies it.
type Element interface {
	Click(options ...playwright.LocatorClickOptions) error
	Fill(value string, options ...playwright.LocatorFillOptions) error
	WaitFor(options ...playwright.LocatorWaitForOptions) error
	SelectOption(values playwright.SelectOptionValues, options ...playwright.LocatorSelectOptionOptions) ([]string, error)
}

// Runner executes UI steps with a shared retry policy.
type Runner struct {
	cfg retry.Config
}

// NewRunner returns a Runner with the standard UI step policy.
func NewRunner() Runner {
	return Runner{cfg: retry.UIStepConfig()}
}

// NewRunnerWithConfig returns a Runner with a caller-supplied policy.
func NewRunnerWithConfig(cfg retry.Config) Runner {
	return Runner{cfg: cfg}
}

// Click clicks the element, retrying transient failures.
func (r Runner) Click(ctx context.Context, el Element) error {
	err := retry.WithBackoff(ctx, r.cfg, func() error {
		return el.Click()
	})
	if err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// Fill replaces the element's value, retrying transient failures.
func (r Runner) Fill(ctx context.Context, el Element, value string) error {
	err := retry.WithBackoff(ctx, r.cfg, func() error {
		return el.Fill(value)
	})
	if err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	return nil
}

// WaitVisible waits until the element is visible.
func (r Runner) WaitVisible(ctx context.Context, el Element) error {
	err := retry.WithBackoff(ctx, r.cfg, func() error {
		return el.WaitFor(playwright.LocatorWaitForOptions{
			State: playwright.WaitForSelectorStateVisible,
		})
	})
	if err != nil {
		return fmt.Errorf("wait visible: %w", err)
	}
	return nil
}

// SelectOption selects the option with the given value.
func (r Runner) SelectOption(ctx context.Context, el Element, value string) error {
	err := retry.WithBackoff(ctx, r.cfg, func() error {
		selected, err := el.SelectOption(playwright.SelectOptionValues{
			Values: &[]string{value},
		})
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return fmt.Errorf("option %q not found", value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("select option: %w", err)
	}
	return nil
}
