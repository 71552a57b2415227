// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"
)

// PresentError renders err as one terminal line, "context: message", with secrets
// masked and runs of whitespace (server detail and hint lines) collapsed. An empty
// context yields the masked message alone.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(Mask(err.Error())), " ")
	if context == "" {
		return msg
	}
	return context + ": " + msg
}
