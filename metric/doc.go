// Package metric owns the prometheus registry for the service: core
// counters for the chunk buffer and snapshot repository, HTTP request
// accounting, and the /metrics handler. All metrics live under the
// "fingercloak" namespace on a private registry so tests can build as
// many instances as they want without collisions.
package metric
