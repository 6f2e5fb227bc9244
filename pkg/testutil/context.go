package testutil

import (
	"net/http"

	id "cinelog/pkg/domain"
	"cinelog/pkg/requestcontext"
)

// WithIdentity attaches an authenticated identity the way the auth gate does,
// so handlers can be tested without a token round trip.
func WithIdentity(req *http.Request, userID id.UserID, username string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithUsername(ctx, username)
	return req.WithContext(ctx)
}
