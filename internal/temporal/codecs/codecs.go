// Package codecs configures how workflow payloads are encoded on the wire.
package codecs

import (
	"go.temporal.io/sdk/converter"
)

// NewDataConverter returns the default JSON converter wrapped in a zlib codec.
// Audit reports carry per-column match tables and compress well.
func NewDataConverter() converter.DataConverter {
	return converter.NewCodecDataConverter(
		converter.GetDefaultDataConverter(),
		NewPayloadCodec(),
	)
}

// NewPayloadCodec returns the codec applied to every payload. Workers,
// clients and any remote codec server must agree on it.
func NewPayloadCodec() converter.PayloadCodec {
	return converter.NewZlibCodec(converter.ZlibCodecOptions{AlwaysEncode: true})
}
