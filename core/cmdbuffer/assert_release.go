//go:build !cmdbufdebug

package cmdbuffer

// debugAssertions turns contract violations into panics in cmdbufdebug builds.
const debugAssertions = false
