package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxIDLength bounds dependency ids and type names.
const maxIDLength = 256

// typeNameRegex matches valid dependency type names (e.g. "Keyword", "RoleDef").
var typeNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// ValidateTypeName validates a dependency type name.
func ValidateTypeName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "dependency type cannot be empty")
	}
	if len(name) > maxIDLength {
		return New(ErrCodeInvalidInput, "dependency type too long (max %d characters)", maxIDLength)
	}
	if !typeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid dependency type: %q", name)
	}
	return nil
}

// ValidateDependencyID validates a dependency id for safety.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters or null bytes
//   - Maximum length of 256 characters
//
// Type-specific validation is left to the handlers.
func ValidateDependencyID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "dependency id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidInput, "dependency id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "dependency id contains invalid control characters")
		}
	}
	return nil
}

// ValidateDataFileName validates the name of a data file carried in an archive.
// It must be a relative, forward-slash path with no traversal so that staging
// can never write outside its directory.
func ValidateDataFileName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." {
			return New(ErrCodeInvalidPath, "data file name has empty path segment: %q", name)
		}
	}
	return nil
}

// ValidatePath validates a relative file path for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
