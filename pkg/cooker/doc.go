// Package cooker is the public client for a Nano sous-vide cooker.
//
// A Client owns one connection session, one command dispatcher and one
// sensor poller. Clients share nothing, so several cookers can be driven
// from one process.
//
// Basic usage:
//
//	c := cooker.New(cooker.Config{Adapter: adapter})
//	defer c.Close()
//
//	if err := c.Connect(ctx, nil); err != nil {
//	    return err
//	}
//	if err := c.SetTargetTemperature(ctx, 56.5); err != nil {
//	    return err
//	}
//	if _, err := c.Start(ctx); err != nil {
//	    return err
//	}
//
//	c.Subscribe(func(v sensor.Values) {
//	    fmt.Println(v.WaterTemp, v.Status())
//	})
//	c.StartPoll(10 * time.Second)
package cooker
