// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import "context"

// Default navigation targets.
const (
	DefaultLandingRoute = "/dashboard"
	DefaultEntryRoute   = "/auth"
)

// Navigator moves the user to a route after a state transition.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string) error

func (f NavigatorFunc) Navigate(ctx context.Context, route string) error { return f(ctx, route) }

// NopNavigator ignores navigation requests.
type NopNavigator struct{}

func (NopNavigator) Navigate(context.Context, string) error { return nil }
