// Package server is the HTTP front end: it exposes POST /alert/{pluginName}
// together with health, service info, metrics and the live record stream.
package server
