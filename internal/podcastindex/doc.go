// Package podcastindex is a client for the Podcast Index directory API.
//
// Requests are signed with the key/secret/date SHA-1 scheme the service
// requires, and every response is checked against the shape the rest of the
// application relies on before it is returned. Shape violations are
// services.ErrValidation; transport failures and non-200 answers are
// services.ErrUpstream.
package podcastindex
