// Package frame implements the zero-delimited byte-stuffing used on the
// appliance's GATT characteristics.
//
// Every frame written to the appliance and every response it notifies back
// is stuffed so that the byte 0 never appears inside the payload. Groups are
// prefixed by a length byte; a group shorter than the maximum implies a zero
// byte that the encoder removed. A trailing 0 marks the end of the frame.
//
// # Encoding
//
//	raw := frame.Encode([]byte{0x00, 0x05}, true) // 01 02 05 00
//
// # Decoding
//
// Responses arrive as notification chunks of at most 20 bytes. Decode can be
// applied to any prefix of a response: bytes that the group lengths promise
// but that have not arrived yet are reported through Result.Missing.
//
//	acc := frame.NewAccumulator()
//	for chunk := range chunks {
//	    if res, done := acc.Add(chunk); done {
//	        return res.Payload
//	    }
//	}
package frame
