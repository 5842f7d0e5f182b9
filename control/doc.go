// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics and debug introspection around the pool managers:
//   - YAML pool layouts with human readable sizes, built into managers
//   - Prometheus registry exposing allocator metrics
//   - Probe registration and state dumps
package control
