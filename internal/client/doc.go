// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client is the composition root of clinic-keeper.
//
// It builds the security monitor, the encrypted store, the server adapter and
// the services in dependency order, registers the monitor's destructive
// responses, reloads persisted auth state and runs the background jobs for
// the lifetime of a context.
package client
