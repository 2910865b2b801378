package pkgtree

import "fmt"

// NoSetError indicates a lookup for a test set that does not exist.
type NoSetError struct {
	Name string
}

func (e *NoSetError) Error() string {
	return fmt.Sprintf("no test set named %q", e.Name)
}

// NoTestError indicates a lookup for a test case that does not exist.
type NoTestError struct {
	Name string
}

func (e *NoTestError) Error() string {
	return fmt.Sprintf("no test named %q", e.Name)
}

// TestExistsError indicates a move or rename that would collide.
type TestExistsError struct {
	Name string
}

func (e *TestExistsError) Error() string {
	return fmt.Sprintf("test named %q already exists", e.Name)
}

// PackageExistsError indicates a create over an existing commit.
type PackageExistsError struct {
	Path string
}

func (e *PackageExistsError) Error() string {
	return fmt.Sprintf("package files already exist in %s", e.Path)
}

// InvalidExtensionError indicates an unsupported task-description
// extension.
type InvalidExtensionError struct {
	Ext string
}

func (e *InvalidExtensionError) Error() string {
	return fmt.Sprintf("%q is not a valid task description extension", e.Ext)
}

// CreationError wraps a failure while materializing a package from an
// archive; the partially created tree has been removed.
type CreationError struct {
	Path string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("package creation failed at %s: %v", e.Path, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }
