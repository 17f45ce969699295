package jsengine

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// consoleAPI routes console.log, console.warn, and console.error from
// hosted scripts to zap.
type consoleAPI struct {
	logger *zap.Logger
}

func (c *consoleAPI) register(vm *goja.Runtime) {
	console := vm.NewObject()
	_ = console.Set("log", c.log)
	_ = console.Set("warn", c.warn)
	_ = console.Set("error", c.errorFn)
	_ = vm.Set("console", console)
}

func (c *consoleAPI) log(call goja.FunctionCall) goja.Value {
	c.logger.Debug(formatArgs(call.Arguments), zap.String("source", "console"))
	return goja.Undefined()
}

func (c *consoleAPI) warn(call goja.FunctionCall) goja.Value {
	c.logger.Warn(formatArgs(call.Arguments), zap.String("source", "console"))
	return goja.Undefined()
}

func (c *consoleAPI) errorFn(call goja.FunctionCall) goja.Value {
	c.logger.Error(formatArgs(call.Arguments), zap.String("source", "console"))
	return goja.Undefined()
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
