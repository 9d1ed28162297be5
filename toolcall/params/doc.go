/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package params extracts typed values from the argument maps that arrive
// with model-issued tool calls. JSON decoding collapses every number to
// float64, so integer parameters are converted explicitly. Failures are
// returned both as Go errors (for the registry) and as error response maps
// (for feeding back into the model's context).
package params
