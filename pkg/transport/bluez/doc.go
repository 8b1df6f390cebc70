// Package bluez implements transport.Adapter on top of BlueZ, the Linux
// Bluetooth stack, using its D-Bus API.
//
// Discovery polls the object manager for Device1 objects while a discovery
// session is active. Connections resolve GATT services, locate the cooker's
// characteristics by UUID and route PropertiesChanged signals to
// notification subscribers. A Device1 Connected=false signal is reported as a
// disconnect.
//
//	adapter, err := bluez.New(bluez.Config{Adapter: "hci0"})
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
package bluez
