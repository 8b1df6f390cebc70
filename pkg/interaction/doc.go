// Package interaction implements the command/response exchange with the
// cooker.
//
// The cooker answers requests on a notify characteristic in chunks of at
// most 20 bytes. Frames carry no request identifier, so a response can only
// be matched to its request by order. The Client therefore admits one
// exchange at a time:
//
//	Idle -> Sending -> AwaitingResponse -> Complete | TimedOut | Failed
//
// Write commands end after the acknowledged GATT write. Read commands
// accumulate notification chunks until they decode to a complete frame,
// then decode the payload with the command's response schema.
//
// # Usage
//
//	client := interaction.NewClient(interaction.Config{Conns: session})
//
//	msg, err := client.Read(ctx, command.GetSensorValues)
//	err = client.Write(ctx, command.SetTemp, &wire.IntegerValue{Value: 560})
//
// A chunk that arrives while no exchange is waiting is logged and dropped.
// When the link drops during an exchange, HandleDisconnect fails the
// waiting call with ErrConnectionLost instead of letting it time out.
package interaction
