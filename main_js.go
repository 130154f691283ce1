//go:build js

package main

import (
	"syscall/js"
)

// bech32VectorsFunction takes the reference module source and returns the
// JSON document, or the error text.
func bech32VectorsFunction(this js.Value, p []js.Value) any {
	if len(p) == 0 {
		return js.ValueOf("bech32Vectors: missing module source")
	}
	output, err := extractSource(MustLoadManifest(), []byte(p[0].String()), nil)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return js.ValueOf(string(output))
}

func main() {
	c := make(chan struct{})

	js.Global().Set("bech32Vectors", js.FuncOf(bech32VectorsFunction))

	<-c
}
