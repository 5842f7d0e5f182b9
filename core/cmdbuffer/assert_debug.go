//go:build cmdbufdebug

package cmdbuffer

const debugAssertions = true
