// Package influxdb records polled controller values in InfluxDB v2.
//
// Every numeric property value reconciled by a poll becomes a point in the
// "bacnet_property" measurement, tagged by device, object, object type and
// property. Poll statistics are written to "eclypse_poll" so request volume
// and controller latency can be graphed next to the values themselves.
//
// Writes are non-blocking and batched by the client library; asynchronous
// write errors are delivered to the callback set with SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
//	client.WriteProperty("office", "analogValue_1001", "presentValue", 71.5, time.Now())
package influxdb
