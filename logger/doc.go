// Package logger provides structured logging for resolvekit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. The registry, compiler and container each log
// through a named logger so their output can be filtered by component.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("compiler")
//	log.Debug("target compiled", logger.Fields("target", id, "type", typ))
package logger
