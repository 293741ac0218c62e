// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

// ErrNotWorkflow is the sentinel returned by Submit when the detector declines
// the message; callers fall back to the single-call path.
var ErrNotWorkflow = errors.New("message is not a workflow")

var ErrWorkflowNotFound = errors.New("workflow not found")
var ErrUnknownAgent = errors.New("unknown agent")
