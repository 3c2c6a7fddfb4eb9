// Package ownerhandler serves the owner's side of data requests.
package ownerhandler
