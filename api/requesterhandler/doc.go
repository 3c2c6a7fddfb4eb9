// Package requesterhandler serves the requester's side of data requests.
package requesterhandler
