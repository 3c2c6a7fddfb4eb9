// Package identityhandler serves registration and updates of the wallet's
// own identity record.
package identityhandler
