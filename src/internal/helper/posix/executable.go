// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"strings"
)

// DefaultExecutableName is returned when os.Args carries no program name.
const DefaultExecutableName = "x509-path-validator"

// ExecutableName returns the program name from os.Args[0] without directory
// and without a trailing ".exe". Both slash and backslash separate path
// components, so Windows paths reduce the same way on every OS.
func ExecutableName() string {
	if len(os.Args) == 0 {
		return DefaultExecutableName
	}
	return baseName(os.Args[0])
}

func baseName(arg0 string) string {
	parts := strings.FieldsFunc(arg0, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 0 {
		return DefaultExecutableName
	}
	name := strings.TrimSuffix(parts[len(parts)-1], ".exe")
	if name == "" {
		return DefaultExecutableName
	}
	return name
}
