package charting

import "errors"

// StorageError wraps an I/O failure at the snapshot store boundary. The
// save flow surfaces it to the caller and leaves the draft cache entry
// untouched so the clinician's unsaved work stays recoverable. The
// adapter does not retry; retries belong to the store's own transport.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
