package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap causes with WrapError and branch with IsKind.
var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
	ErrIndexBuild    = errors.New("index build failed")
	ErrGeneration    = errors.New("generation failed")
	ErrTemporary     = errors.New("temporary failure")
)

// kindNames is ordered by precedence: an error wrapping several kinds reports the first match.
var kindNames = []struct {
	kind error
	name string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrNotFound, "not_found"},
	{ErrConfiguration, "configuration"},
	{ErrIndexBuild, "index_build"},
	{ErrGeneration, "generation"},
	{ErrTemporary, "temporary"},
}

// WrapError returns "<operation>: <kind>: <cause>" matching both kind and cause. Nil stays nil.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName is a stable label for err's kind, "" for nil and "unknown" when no kind matches.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "unknown"
}
