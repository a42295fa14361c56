// Package cdbsapi talks to the CDBS GraphQL backend.
//
// # Entry Points
//
// NewClient: construct a client from Config (endpoint, token, timeout).
// Client.RequestUploads: allocate upload slots for files on a catalog object.
// Client.ConfirmUploads: confirm stored files; satisfies upload.Confirmer.
// Client.Ping: verify the endpoint answers GraphQL requests.
//
// # Transport
//
// Every call is a JSON POST of {query, variables} with the token sent as the
// raw Authorization header. The response envelope is {data, errors}; a null
// data field or any error entry becomes an *Error carrying the first message.
// The backend reports expired tokens as the message "Unauthorized", which
// unwraps to services.ErrUnauthorized.
//
// The client never retries. Callers that want another attempt re-run the
// command, which allocates fresh upload slots.
package cdbsapi
