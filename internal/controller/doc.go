// Package controller talks to the remote network controller's REST API.
//
// It is deliberately thin: fetch a collection, apply a patch, classify
// failures. All interpretation of the returned records lives in the
// catalog and mirror packages; all retry and recovery policy lives in the
// reconciliation coordinator.
package controller
