package constants

import "time"

const (
	DefaultHost       = "mafreebox.freebox.fr"
	DefaultHTTPPort   = "80"
	DefaultHTTPSPort  = "443"
	DefaultPreferTLS  = true
	DefaultDeviceName = "Freebox Server"

	// DefaultAPIVersion is the API version this library is written against.
	DefaultAPIVersion = "v6"
	// ServerAPIVersion asks to use whatever version the appliance advertises.
	ServerAPIVersion = "server"

	// Unknown replaces host or port values that were never supplied.
	Unknown = "None"

	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = time.Second
	// DefaultDrainDelay lets the transport release its ports after a close.
	DefaultDrainDelay = 250 * time.Millisecond

	DefaultTokenFilename = "app_auth"

	// AppAuthHeader carries the session token on signed requests.
	AppAuthHeader = "X-Fbx-App-Auth"
)
