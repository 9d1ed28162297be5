/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package prompt builds LLM prompts from templates with {{placeholder}}
// bindings. Templates are authored as literals at compile time; request
// data is bound per run, either verbatim or marshaled as JSON/YAML so that
// user-controlled text cannot introduce new placeholders.
//
// A Prompt is immutable: each Bind* call returns a new Prompt. Build fails
// if any placeholder is still unbound, which catches template drift early.
package prompt
