// Package transporttest provides an in-memory BLE adapter and a simulated
// cooker peripheral for tests.
//
// A Peripheral answers writes on the write characteristic by notifying
// response frames split into 20-byte chunks, the same way the real
// appliance does. NewCooker returns a peripheral backed by a small cooker
// state machine; custom behaviour is set through Peripheral.Respond.
//
//	cooker := transporttest.NewCooker("C0:FF:EE:00:00:01")
//	adapter := transporttest.NewAdapter(cooker.Peripheral)
package transporttest
