/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package build

import "context"

type principalKey struct{}

// System is the principal allowed to browse every build.
const System = "SYSTEM"

// AsSystem returns a context running as the System principal.
func AsSystem(ctx context.Context) context.Context {
	return WithPrincipal(ctx, System)
}

// WithPrincipal returns a context running as the named principal.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// Principal returns the principal of the context, or "" for an anonymous one.
func Principal(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(string)
	return p
}

// IsSystem reports whether the context runs as the System principal.
func IsSystem(ctx context.Context) bool {
	return Principal(ctx) == System
}
