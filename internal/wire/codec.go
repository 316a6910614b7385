package wire

// Codec maps between values (nested sequences, mappings, integers, byte
// strings, text, booleans, nil) and self-delimiting bytes. The codec's
// output format is part of the framing contract: peers must agree on it.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

// Compressor compresses and decompresses message bodies. The reference
// wire uses DEFLATE with the zlib wrapper.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}
