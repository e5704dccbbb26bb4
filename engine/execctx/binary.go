package execctx

import "github.com/gabriel-vasile/mimetype"

// BinaryValue is the value a node sets for a Binary-typed output: raw bytes
// plus a sniffed MIME type, since the declaring node rarely knows the exact
// content type of data it downloads or reads.
type BinaryValue struct {
	Bytes    []byte
	MIMEType string
}

// NewBinaryValue sniffs data's MIME type and wraps it as a BinaryValue.
func NewBinaryValue(data []byte) BinaryValue {
	return BinaryValue{Bytes: data, MIMEType: mimetype.Detect(data).String()}
}

// SetBinaryOutput is a convenience wrapper around SetOutput that sniffs the
// MIME type of raw bytes before storing them.
func (c *Context) SetBinaryOutput(name string, data []byte) error {
	return c.SetOutput(name, NewBinaryValue(data))
}
