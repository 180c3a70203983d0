package server

// Route path constants.
const (
	RouteHealthz = "/healthz"

	// routeFavicon is exempt from the authentication gate: fetching an icon
	// must never kick off a login flow.
	routeFavicon = "/favicon.ico"
)
