package localstore

import "errors"

var ErrActionNotFound = errors.New("pending action not found")
