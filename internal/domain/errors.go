package domain

import "errors"

// ErrProviderNotFound indicates the requested provider name is not registered.
// The router recovers from this locally by substituting the default client.
var ErrProviderNotFound = errors.New("provider not found")

// ErrNoAvailableProvider indicates the registry is empty when a default client
// is needed. There is no reasonable substitute, so it propagates to the caller.
var ErrNoAvailableProvider = errors.New("no available provider")

// ErrHistoryNotFound indicates no stored history exists for a session.
var ErrHistoryNotFound = errors.New("history not found")
