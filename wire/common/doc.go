// Package common provides core data structures and utilities shared across
// the wire protocol engine. It defines configuration structures and the
// logging implementation used by all other wire packages.
//
// The package focuses on:
//   - Configuration structures for the server and client components
//   - Custom logging implementation behind the dragonboat logger facade
//   - Transport, TLS and authentication settings shared across packages
//
// Key Components:
//
//   - ServerConfig: Comprehensive configuration for the protocol server,
//     covering the endpoint, connection ceiling, authentication policy,
//     compression codecs and TLS material paths.
//
//   - ClientConfig: Configuration for client components, controlling the
//     endpoint, credentials, declared compression codecs and timeouts.
//
//   - Logger: Custom logging implementation that plugs into the dragonboat
//     logger factory while providing consistent formatting across the
//     application.
package common
