package billing

import "github.com/pkg/errors"

var (
	// ErrInvalidSignature rejects a delivery that did not come from the provider.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent rejects an authentic delivery whose body cannot be decoded.
	ErrMalformedEvent = errors.New("malformed webhook event")
	// ErrResourceMissing is returned by a Provider when the requested object
	// does not exist on the provider side.
	ErrResourceMissing = errors.New("provider resource not found")
)
