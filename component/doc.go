// Package component defines the lifecycle interface shared by long-lived
// services and a Group that starts them in order and stops them in reverse.
package component
