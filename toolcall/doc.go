/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package toolcall defines the provider-independent tool surface given to a
// language-model planner: tool definitions with typed parameter schemas, the
// calls the model issues against them, and a registry that validates each
// call before dispatching it to its handler.
//
// Validation failures are deliberately not Go errors to the caller. They are
// rendered as error payloads in the tool result so the model can read them
// and correct itself on the next turn. Conversion to SDK-specific tool
// formats happens in the planner packages.
package toolcall
