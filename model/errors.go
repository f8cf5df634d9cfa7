// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import "errors"

// Sentinels matched by every importer error through errors.Is.
var (
	ErrFormat      = errors.New("model: malformed model data")
	ErrUnsupported = errors.New("model: unsupported model feature")
)

// FormatError reports malformed or truncated model data.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "model: " + e.Reason
}

// Is makes errors.Is(err, ErrFormat) hold.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// UnsupportedFormatError reports well-formed data using a feature the
// importers do not handle.
type UnsupportedFormatError struct {
	Feature string
}

func (e *UnsupportedFormatError) Error() string {
	return "model: unsupported " + e.Feature
}

// Is makes errors.Is hold for both ErrFormat and ErrUnsupported.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrFormat || target == ErrUnsupported
}
