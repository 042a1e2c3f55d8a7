// Package mqtt connects the Eclypse bridge to its MQTT broker.
//
// The broker is the bridge's outward surface: polled BACnet property values
// are published as retained state, health reports are published on a fixed
// cadence, and write commands arrive on per-property command topics.
//
// The client wraps paho.mqtt.golang and adds:
//   - Auto-reconnect with subscription restore
//   - Last Will and Testament on the bridge status topic
//   - Input validation (topic, QoS, payload size)
//   - Panic recovery around message handlers
//
// # Topics
//
//	eclypse/state/{device}/{object}/{property}    retained property values
//	eclypse/command/{device}/{object}/{property}  write requests
//	eclypse/ack/{device}/{object}/{property}      write acknowledgements
//	eclypse/health/{device}                       health reports
//	eclypse/status/{client_id}                    online/offline (LWT)
//	{discovery_prefix}/{component}/{id}/config    Home Assistant discovery
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.State("eclypse-office", "analogValue_1001", "presentValue")
//	err = client.Publish(topic, []byte(`71.5`), 1, true)
package mqtt
