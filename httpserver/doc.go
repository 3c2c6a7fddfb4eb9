/*
Package httpserver runs the identity agent's HTTP API.

The server mounts the API handlers behind an access log and adds the
operational endpoints:

  - GET /livez - always 200 while the process runs
  - GET /readyz - 200 unless draining or a readiness check fails
  - GET /drain, /undrain - toggle readiness for load balancers
  - /debug - pprof, when enabled

Readiness checks are registered with AddReadinessCheck; the agent uses one
to stop taking traffic while the RPC endpoint serves the wrong chain.
The Prometheus registry is served by a separate metrics server.
*/
package httpserver
