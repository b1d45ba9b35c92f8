package forge

import "errors"

// ErrNotFound is returned when the forge API reports a 404 for a project,
// branch, or group lookup.
var ErrNotFound = errors.New("forge: resource not found")
